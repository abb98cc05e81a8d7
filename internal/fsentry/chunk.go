package fsentry

import (
	"fmt"
	"sync"

	"github.com/lanshare/storagecore/internal/hash"
)

// Chunk is one fixed-size span of a File's content. It is the unit the
// network layer addresses: chunks must be reachable by hash without
// traversing the directory tree, so they hold a direct (weak) back
// reference to their owning File rather than requiring callers to walk
// File.chunks to find one.
type Chunk struct {
	mu sync.Mutex

	file       *File // weak back-reference; File owns the Chunk
	index      int
	chunkSize  int64
	knownBytes int64
	hash       hash.Hash
	orphaned   bool
}

// ChunkRecord is the persistence DTO for a Chunk's hash and known-byte
// count, used by C7 HashPersistence.
type ChunkRecord struct {
	Hash       hash.Hash
	KnownBytes int64
}

func newChunk(f *File, index int, chunkSize int64, knownBytes int64, h hash.Hash) *Chunk {
	return &Chunk{file: f, index: index, chunkSize: chunkSize, knownBytes: knownBytes, hash: h}
}

// Index returns the chunk's 0-based position within its file.
func (c *Chunk) Index() int { return c.index }

// ChunkSize returns chunkSize(index): CHUNK_SIZE, except possibly the
// last chunk of a file, which may be the file-size remainder.
func (c *Chunk) ChunkSize() int64 { return c.chunkSize }

// Hash returns the chunk's hash, or the null hash if not yet computed.
func (c *Chunk) Hash() hash.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hash
}

// SetHash records a freshly computed or restored hash. Called by the
// external hasher or by File.RestoreFromFileCache.
func (c *Chunk) SetHash(h hash.Hash) {
	c.mu.Lock()
	c.hash = h
	known := c.knownBytes
	f := c.file
	c.mu.Unlock()

	if !h.IsNull() && known > 0 && f != nil {
		f.registry.OnChunkHashKnown(c)
	}
}

// HasHash reports whether the chunk's hash is known.
func (c *Chunk) HasHash() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.hash.IsNull()
}

// KnownBytes returns the number of bytes of this chunk currently known
// to be correct on disk.
func (c *Chunk) KnownBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.knownBytes
}

// IsComplete reports knownBytes == chunkSize(index).
func (c *Chunk) IsComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.knownBytes == c.chunkSize
}

// SetKnownBytes is the writer-path update. Monotonic is not required:
// the file-created-from-scratch path explicitly resets known bytes to
// zero (see File.newDataWriterCreated / ErrFileReset).
func (c *Chunk) SetKnownBytes(n int64) error {
	if n < 0 || n > c.chunkSize {
		return fmt.Errorf("fsentry: known bytes %d out of range [0, %d]", n, c.chunkSize)
	}
	c.mu.Lock()
	c.knownBytes = n
	wasComplete := n == c.chunkSize
	f := c.file
	c.mu.Unlock()

	if wasComplete && f != nil {
		f.chunkComplete(c)
	}
	return nil
}

// resetKnownBytes is used by the file-reset path: it clears the known
// byte count without triggering chunkComplete (there is nothing to
// complete) and reports whether there was anything to reset.
func (c *Chunk) resetKnownBytes() (hadProgress bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hadProgress = c.knownBytes != 0
	c.knownBytes = 0
	return hadProgress
}

// fileDeleted invalidates the back-reference. Subsequent IO through
// this chunk fails with ErrChunkOrphaned.
func (c *Chunk) fileDeleted() {
	c.mu.Lock()
	c.orphaned = true
	c.file = nil
	c.mu.Unlock()
}

// Orphaned reports whether the chunk's owning file has been deleted.
// Callers holding a chunk reference from the hash index must check
// this on every lookup: a weak reference is not automatically pruned,
// only lazily verified.
func (c *Chunk) Orphaned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orphaned
}

// Read reads up to n bytes of the chunk's content starting at
// offsetInChunk, translating to the owning file's absolute offset.
func (c *Chunk) Read(buf []byte, offsetInChunk int64, n int) (int, error) {
	c.mu.Lock()
	f, orphaned, idx := c.file, c.orphaned, c.index
	cs := c.chunkSize
	c.mu.Unlock()
	if orphaned || f == nil {
		return 0, ErrChunkOrphaned
	}
	if offsetInChunk >= cs {
		return 0, nil
	}
	if rem := cs - offsetInChunk; int64(n) > rem {
		n = int(rem)
	}
	return f.Read(buf, f.chunkByteOffset(idx)+offsetInChunk, n)
}

// Write writes up to nbBytes of buf into the chunk's content starting
// at offsetInChunk, translating to the owning file's absolute offset.
func (c *Chunk) Write(buf []byte, nbBytes int, offsetInChunk int64) (int64, error) {
	c.mu.Lock()
	f, orphaned, idx := c.file, c.orphaned, c.index
	cs := c.chunkSize
	c.mu.Unlock()
	if orphaned || f == nil {
		return 0, ErrChunkOrphaned
	}
	if offsetInChunk >= cs {
		return 0, nil
	}
	if rem := cs - offsetInChunk; int64(nbBytes) > rem {
		nbBytes = int(rem)
	}
	return f.Write(buf, nbBytes, f.chunkByteOffset(idx)+offsetInChunk)
}

// PopulateRecord returns the persistence DTO for this chunk.
func (c *Chunk) PopulateRecord() ChunkRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ChunkRecord{Hash: c.hash, KnownBytes: c.knownBytes}
}

// RestoreFromRecord restores hash/knownBytes from a persisted record
// without re-triggering completion notifications; the caller
// (File.RestoreFromFileCache) decides whether to register the chunk in
// the hash index afterward.
func (c *Chunk) RestoreFromRecord(r ChunkRecord) {
	c.mu.Lock()
	c.hash = r.Hash
	c.knownBytes = r.KnownBytes
	c.mu.Unlock()
}
