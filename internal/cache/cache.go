// Package cache implements the top-level registry of shared
// directories, the chunk-hash and entry-name indices, and the observer
// plumbing that external collaborators (downloader, hasher, network
// layer) subscribe to.
package cache

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lanshare/storagecore/internal/events"
	"github.com/lanshare/storagecore/internal/filepool"
	"github.com/lanshare/storagecore/internal/fsentry"
	"github.com/lanshare/storagecore/internal/hash"
	"github.com/sirupsen/logrus"
)

// Cache is the single synchronization domain for cross-file mutations:
// moving files between directories, adding/removing shared-dir roots,
// and the indices that make hash- and name-based lookup possible
// without walking the tree. It implements fsentry.Registry.
type Cache struct {
	mu sync.RWMutex

	cfg  fsentry.Config
	pool *filepool.Pool
	log  *logrus.Logger

	roots map[hash.Hash]*fsentry.SharedDirectory

	// chunkIndex maps a chunk's hash to a weak reference: the pointer
	// itself. OnChunkRemoved erases an entry; LookupByHash additionally
	// verifies liveness via Chunk.Orphaned() and prunes a dead hit (see
	// SPEC_FULL.md §4.6).
	chunkIndex map[hash.Hash]*fsentry.Chunk

	// entryIndex is a normalized-name multi-map, used by Search.
	entryIndex map[string][]fsentry.Entry

	observers map[uuid.UUID]events.Observer
}

// New creates an empty Cache. log may be nil, in which case logrus's
// standard logger is used.
func New(cfg fsentry.Config, log *logrus.Logger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{
		cfg:        cfg,
		pool:       filepool.New(log),
		log:        log,
		roots:      make(map[hash.Hash]*fsentry.SharedDirectory),
		chunkIndex: make(map[hash.Hash]*fsentry.Chunk),
		entryIndex: make(map[string][]fsentry.Entry),
		observers:  make(map[uuid.UUID]events.Observer),
	}
}

// FilePool implements fsentry.Registry.
func (c *Cache) FilePool() *filepool.Pool { return c.pool }

// Config implements fsentry.Registry.
func (c *Cache) Config() fsentry.Config { return c.cfg }

// AddSharedDirectory registers a new share root, created by the
// caller (typically cmd/storagecli) via
// fsentry.NewSharedDirectory(cache, ...).
func (c *Cache) AddSharedDirectory(sd *fsentry.SharedDirectory) {
	c.mu.Lock()
	c.roots[sd.ID()] = sd
	c.mu.Unlock()

	c.notify(func(o events.Observer) { o.OnSharedDirectoryAdded(sd) })
}

// RemoveSharedDirectory unregisters a share root. It does not delete
// any file or chunk entries that belong to it; callers that want that
// should walk the tree and call File.Del first.
func (c *Cache) RemoveSharedDirectory(id hash.Hash) {
	c.mu.Lock()
	sd, ok := c.roots[id]
	if ok {
		delete(c.roots, id)
	}
	c.mu.Unlock()

	if ok {
		c.notify(func(o events.Observer) { o.OnSharedDirectoryRemoved(sd) })
	}
}

// SharedDirectories returns a shallow snapshot of every registered
// share root.
func (c *Cache) SharedDirectories() []*fsentry.SharedDirectory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*fsentry.SharedDirectory, 0, len(c.roots))
	for _, sd := range c.roots {
		out = append(out, sd)
	}
	return out
}

// SharedDirectoryByID returns the share root with the given id, or nil.
func (c *Cache) SharedDirectoryByID(id hash.Hash) *fsentry.SharedDirectory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roots[id]
}

// LookupByHash returns the owning Chunk for a content hash, or nil if
// no chunk is indexed under it or the indexed chunk has since been
// orphaned. An orphaned hit is lazily pruned.
func (c *Cache) LookupByHash(h hash.Hash) *fsentry.Chunk {
	c.mu.RLock()
	chunk, ok := c.chunkIndex[h]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	if chunk.Orphaned() {
		c.mu.Lock()
		if cur, ok := c.chunkIndex[h]; ok && cur == chunk {
			delete(c.chunkIndex, h)
		}
		c.mu.Unlock()
		return nil
	}
	return chunk
}

// Search returns every indexed entry whose normalized name contains
// every token in tokens (case-insensitive, AND semantics).
func (c *Cache) Search(tokens []string) []fsentry.Entry {
	normTokens := make([]string, len(tokens))
	for i, t := range tokens {
		normTokens[i] = strings.ToLower(t)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []fsentry.Entry
	for name, entries := range c.entryIndex {
		if !containsAllTokens(name, normTokens) {
			continue
		}
		out = append(out, entries...)
	}
	return out
}

func containsAllTokens(name string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(name, t) {
			return false
		}
	}
	return true
}

func normalizedName(e fsentry.Entry) string {
	return strings.ToLower(e.Name())
}

// OnChunkHashKnown implements fsentry.Registry.
func (c *Cache) OnChunkHashKnown(chunk *fsentry.Chunk) {
	c.mu.Lock()
	c.chunkIndex[chunk.Hash()] = chunk
	c.mu.Unlock()

	c.notify(func(o events.Observer) { o.OnChunkHashKnown(chunk) })
}

// OnChunkRemoved implements fsentry.Registry.
func (c *Cache) OnChunkRemoved(chunk *fsentry.Chunk) {
	h := chunk.Hash()
	c.mu.Lock()
	if cur, ok := c.chunkIndex[h]; ok && cur == chunk {
		delete(c.chunkIndex, h)
	}
	c.mu.Unlock()

	c.notify(func(o events.Observer) { o.OnChunkRemoved(chunk) })
}

// OnEntryAdded implements fsentry.Registry.
func (c *Cache) OnEntryAdded(e fsentry.Entry) {
	name := normalizedName(e)
	c.mu.Lock()
	c.entryIndex[name] = append(c.entryIndex[name], e)
	c.mu.Unlock()

	c.notify(func(o events.Observer) { o.OnEntryAdded(e) })
}

// OnEntryRemoved implements fsentry.Registry.
func (c *Cache) OnEntryRemoved(e fsentry.Entry) {
	name := normalizedName(e)
	c.mu.Lock()
	entries := c.entryIndex[name]
	for i, existing := range entries {
		if existing == e {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(c.entryIndex, name)
	} else {
		c.entryIndex[name] = entries
	}
	c.mu.Unlock()

	c.notify(func(o events.Observer) { o.OnEntryRemoved(e) })
}

// Subscribe registers an observer and returns a handle for Unsubscribe.
func (c *Cache) Subscribe(o events.Observer) uuid.UUID {
	id := uuid.New()
	c.mu.Lock()
	c.observers[id] = o
	c.mu.Unlock()
	return id
}

// Unsubscribe removes a previously registered observer.
func (c *Cache) Unsubscribe(id uuid.UUID) {
	c.mu.Lock()
	delete(c.observers, id)
	c.mu.Unlock()
}

// notify delivers deliver to every observer synchronously, never while
// holding the Cache's write lock.
func (c *Cache) notify(deliver func(events.Observer)) {
	c.mu.RLock()
	snapshot := make([]events.Observer, 0, len(c.observers))
	for _, o := range c.observers {
		snapshot = append(snapshot, o)
	}
	c.mu.RUnlock()

	for _, o := range snapshot {
		deliver(o)
	}
}
