// Package hasher walks a shared directory's filesystem subtree,
// creates the File/FileForHasher entries that represent what is found,
// and computes each chunk's hash with a bounded worker pool.
package hasher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/lanshare/storagecore/internal/fsentry"
	"github.com/lanshare/storagecore/internal/hash"
	"github.com/sirupsen/logrus"
)

type fileJob struct {
	dir     *fsentry.Directory
	name    string
	osPath  string
	modTime time.Time
}

// Scan walks sd's mounted filesystem subtree, builds the in-memory
// Directory/File tree under sd via registry, and hashes every
// discovered file's chunks across numWorkers goroutines. If numWorkers
// is less than 1, runtime.NumCPU() is used, mirroring the teacher's
// parallelism-ratio default.
func Scan(ctx context.Context, sd *fsentry.SharedDirectory, registry fsentry.Registry, numWorkers int) error {
	if numWorkers < 1 {
		numWorkers = runtime.NumCPU()
	}
	chunkSize := registry.Config().ChunkSize
	log := logrus.StandardLogger().WithField("component", "hasher")

	jobs := make(chan fileJob, numWorkers*2)
	var wg sync.WaitGroup
	var errOnce sync.Once
	var scanErr error

	recordErr := func(err error) {
		errOnce.Do(func() { scanErr = err })
	}

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					recordErr(ctx.Err())
					continue
				}
				if _, err := hashFile(ctx, job, chunkSize); err != nil {
					log.WithError(err).Errorf("hasher: failed to hash %s", job.osPath)
					recordErr(err)
				}
			}
		}()
	}

	dirs := map[string]*fsentry.Directory{".": &sd.Directory}

	walkErr := filepath.WalkDir(sd.RootPath(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(sd.RootPath(), path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		parentRel := filepath.Dir(rel)
		parent, ok := dirs[parentRel]
		if !ok {
			return fmt.Errorf("hasher: walked into %s before its parent", path)
		}

		if d.IsDir() {
			dirs[rel] = fsentry.NewDirectory(parent, d.Name())
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		select {
		case jobs <- fileJob{dir: parent, name: d.Name(), osPath: path, modTime: info.ModTime()}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	close(jobs)
	wg.Wait()

	if walkErr != nil {
		return fmt.Errorf("hasher: walk %s: %w", sd.RootPath(), walkErr)
	}
	return scanErr
}

// hashFile creates a File entry for job with size 0, then streams the
// on-disk content in registry-chunk-sized blocks, growing the entry
// one chunk at a time via FileForHasher rather than trusting a Stat
// size up front — the file may still be changing underneath a
// concurrent writer.
func hashFile(ctx context.Context, job fileJob, chunkSize int64) (*fsentry.File, error) {
	f, err := fsentry.NewFile(job.dir, job.name, 0, job.modTime, nil, false)
	if err != nil {
		return nil, fmt.Errorf("hasher: create entry for %s: %w", job.osPath, err)
	}
	fh := f.AsFileForHasher()

	osFile, err := os.Open(job.osPath)
	if err != nil {
		return nil, fmt.Errorf("hasher: open %s: %w", job.osPath, err)
	}
	defer osFile.Close()

	buf := make([]byte, chunkSize)
	var total int64
	index := 0

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		n, readErr := io.ReadFull(osFile, buf)
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("hasher: read %s: %w", job.osPath, readErr)
		}
		if n == 0 {
			break
		}

		h, sumErr := hash.Sum(bytes.NewReader(buf[:n]))
		if sumErr != nil {
			return nil, fmt.Errorf("hasher: hash %s chunk %d: %w", job.osPath, index, sumErr)
		}

		chunk := fh.NewChunk(index, int64(n))
		fh.AddChunk(chunk)
		chunk.SetHash(h)
		if err := chunk.SetKnownBytes(int64(n)); err != nil {
			return nil, fmt.Errorf("hasher: mark %s chunk %d known: %w", job.osPath, index, err)
		}

		total += int64(n)
		index++

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
	}

	fh.SetSize(total)
	fh.UpdateDateLastModified(job.modTime)
	return f, nil
}
