package fsentry

import (
	"time"

	"github.com/lanshare/storagecore/internal/hash"
)

// FileForHasher is the restricted view of a File used only during
// initial indexing: the hasher discovers a file's size and chunks
// incrementally as it reads, rather than all at once the way NewFile's
// caller does for a remotely-announced file.
type FileForHasher struct {
	*File
}

// AsFileForHasher adapts f for use by the scan/hash worker.
func (f *File) AsFileForHasher() *FileForHasher {
	return &FileForHasher{File: f}
}

// SetSize updates the file's declared size, propagating the delta to
// the parent directory's cumulative size.
func (fh *FileForHasher) SetSize(size int64) {
	fh.mu.Lock()
	old := fh.size
	fh.size = size
	fh.mu.Unlock()
	if old != size {
		fh.parent.fileSizeChanged(old, size)
	}
}

// UpdateDateLastModified records the on-disk modification time observed
// by the hasher.
func (fh *FileForHasher) UpdateDateLastModified(t time.Time) {
	fh.mu.Lock()
	fh.dateLastModified = t
	fh.mu.Unlock()
}

// NewChunk constructs (but does not yet attach) a chunk for appending
// via AddChunk.
func (fh *FileForHasher) NewChunk(index int, chunkSize int64) *Chunk {
	return newChunk(fh.File, index, chunkSize, 0, hash.Null)
}

// AddChunk appends a chunk discovered by the hasher to the file's
// chunk sequence. Chunks must be added in index order.
func (fh *FileForHasher) AddChunk(c *Chunk) {
	fh.mu.Lock()
	fh.chunks = append(fh.chunks, c)
	fh.mu.Unlock()
}

// RemoveLastChunk pops and returns the most recently added chunk, used
// when the hasher backtracks after discovering a file shrank mid-scan.
// Returns nil if there are no chunks.
func (fh *FileForHasher) RemoveLastChunk() *Chunk {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if len(fh.chunks) == 0 {
		return nil
	}
	c := fh.chunks[len(fh.chunks)-1]
	fh.chunks = fh.chunks[:len(fh.chunks)-1]
	return c
}
