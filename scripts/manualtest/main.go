package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lanshare/storagecore/internal/cache"
	"github.com/lanshare/storagecore/internal/fsentry"
	"github.com/lanshare/storagecore/internal/hash"
	"github.com/lanshare/storagecore/internal/hasher"
)

const chunkSize = 64 * 1024

func main() {
	workDir := "manualtest_data"
	_ = os.RemoveAll(workDir)
	sourceDir := filepath.Join(workDir, "source")
	destDir := filepath.Join(workDir, "dest")
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		fmt.Printf("❌ MkdirAll source: %v\n", err)
		return
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		fmt.Printf("❌ MkdirAll dest: %v\n", err)
		return
	}

	samplePath := filepath.Join(sourceDir, "sample.bin")
	if err := writeRandomFile(samplePath, 3*chunkSize+1234); err != nil {
		fmt.Printf("❌ Failed creating sample file: %v\n", err)
		return
	}
	fmt.Printf("📄 Sample file: %s\n", samplePath)

	cfg := fsentry.Config{ChunkSize: chunkSize, UnfinishedSuffix: ".unfinished"}
	srcCache := cache.New(cfg, nil)
	srcShare := fsentry.NewSharedDirectory(srcCache, mustShareID("source"), sourceDir, "source")
	srcCache.AddSharedDirectory(srcShare)

	ctx := context.Background()
	if err := hasher.Scan(ctx, srcShare, srcCache, 2); err != nil {
		fmt.Printf("❌ Scan failed: %v\n", err)
		return
	}

	srcFile := findFile(srcShare, "sample.bin")
	if srcFile == nil {
		fmt.Println("❌ scan did not index sample.bin")
		return
	}
	fmt.Printf("🧩 Chunks hashed: %d | size: %d bytes\n", len(srcFile.Chunks()), srcFile.Size())

	hashes := make([]hash.Hash, len(srcFile.Chunks()))
	for i, c := range srcFile.Chunks() {
		hashes[i] = c.Hash()
	}

	destCache := cache.New(cfg, nil)
	destShare := fsentry.NewSharedDirectory(destCache, mustShareID("dest"), destDir, "dest")
	destCache.AddSharedDirectory(destShare)

	destFile, err := fsentry.NewFile(&destShare.Directory, "sample.bin", srcFile.Size(), time.Now(), hashes, true)
	if err != nil {
		fmt.Printf("❌ NewFile (unfinished) failed: %v\n", err)
		return
	}
	fmt.Printf("📥 Allocated unfinished file: %s (complete=%v)\n", destFile.Name(), destFile.IsComplete())

	if err := copyChunks(srcFile, destFile); err != nil {
		fmt.Printf("❌ Copying chunks failed: %v\n", err)
		return
	}

	if !destFile.IsComplete() {
		fmt.Println("❌ MISMATCH: destination file never reached completion")
		return
	}
	fmt.Printf("✅ Destination file complete: %s\n", destFile.Name())

	match, err := compareContent(srcFile, destFile)
	if err != nil {
		fmt.Printf("❌ Read-back comparison failed: %v\n", err)
		return
	}
	if match {
		fmt.Println("✅ SUCCESS: reassembled file matches the original byte-for-byte")
	} else {
		fmt.Println("❌ MISMATCH: reassembled file differs from the original")
	}
}

func writeRandomFile(path string, size int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.CopyN(f, rand.Reader, int64(size))
	return err
}

func mustShareID(seed string) hash.Hash {
	h, err := hash.Sum(strings.NewReader(seed))
	if err != nil {
		panic(err)
	}
	return h
}

func findFile(sd *fsentry.SharedDirectory, name string) *fsentry.File {
	for _, f := range sd.Directory.Files() {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// copyChunks reads each source chunk's bytes through the source File's
// read path and writes them into the destination File's write path,
// marking each chunk known as it completes — exercising the same
// session + SetKnownBytes protocol a real downloader would use.
func copyChunks(src, dst *fsentry.File) error {
	rs, err := src.NewDataReader()
	if err != nil {
		return fmt.Errorf("open source reader: %w", err)
	}
	defer rs.Close()

	ws, err := dst.NewDataWriter()
	if err != nil {
		return fmt.Errorf("open destination writer: %w", err)
	}
	defer ws.Close()

	for _, c := range dst.Chunks() {
		offset := int64(c.Index()) * chunkSize
		buf, err := readAll(rs, offset, c.ChunkSize())
		if err != nil {
			return fmt.Errorf("read source chunk %d: %w", c.Index(), err)
		}

		if _, err := ws.Write(buf, len(buf), offset); err != nil {
			return fmt.Errorf("write destination chunk %d: %w", c.Index(), err)
		}
		if err := c.SetKnownBytes(int64(len(buf))); err != nil {
			return fmt.Errorf("mark chunk %d known: %w", c.Index(), err)
		}
	}
	return nil
}

func compareContent(src, dst *fsentry.File) (bool, error) {
	srcRS, err := src.NewDataReader()
	if err != nil {
		return false, err
	}
	defer srcRS.Close()

	dstRS, err := dst.NewDataReader()
	if err != nil {
		return false, err
	}
	defer dstRS.Close()

	size := src.Size()
	srcBuf, err := readAll(srcRS, 0, size)
	if err != nil {
		return false, err
	}
	dstBuf, err := readAll(dstRS, 0, size)
	if err != nil {
		return false, err
	}

	if len(srcBuf) != len(dstBuf) {
		return false, nil
	}
	for i := range srcBuf {
		if srcBuf[i] != dstBuf[i] {
			return false, nil
		}
	}
	return true, nil
}

// readAll drains size bytes starting at baseOffset from a ReadSession,
// looping because a single underlying os.File.Read call is not
// guaranteed to fill the whole buffer.
func readAll(rs *fsentry.ReadSession, baseOffset, size int64) ([]byte, error) {
	buf := make([]byte, size)
	var read int64
	for read < size {
		n, err := rs.Read(buf[read:], baseOffset+read, int(size-read))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("short read at offset %d of %d", baseOffset+read, baseOffset+size)
		}
		read += int64(n)
	}
	return buf, nil
}
