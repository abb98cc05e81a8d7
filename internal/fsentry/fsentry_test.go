package fsentry

import (
	"sync"

	"github.com/lanshare/storagecore/internal/filepool"
)

// fakeRegistry is a minimal Registry used across this package's tests.
// It records every notification it receives so tests can assert on
// them without needing a real internal/cache.Cache.
type fakeRegistry struct {
	mu sync.Mutex

	pool *filepool.Pool
	cfg  Config

	hashKnown    []*Chunk
	chunkRemoved []*Chunk
	entryAdded   []Entry
	entryRemoved []Entry
}

func newFakeRegistry(chunkSize int64, suffix string) *fakeRegistry {
	return &fakeRegistry{
		pool: filepool.New(nil),
		cfg:  Config{ChunkSize: chunkSize, UnfinishedSuffix: suffix},
	}
}

func (r *fakeRegistry) FilePool() *filepool.Pool { return r.pool }
func (r *fakeRegistry) Config() Config           { return r.cfg }

func (r *fakeRegistry) OnChunkHashKnown(c *Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashKnown = append(r.hashKnown, c)
}

func (r *fakeRegistry) OnChunkRemoved(c *Chunk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunkRemoved = append(r.chunkRemoved, c)
}

func (r *fakeRegistry) OnEntryAdded(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryAdded = append(r.entryAdded, e)
}

func (r *fakeRegistry) OnEntryRemoved(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryRemoved = append(r.entryRemoved, e)
}

func (r *fakeRegistry) hashKnownCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hashKnown)
}

func (r *fakeRegistry) entryAddedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entryAdded)
}
