package fsentry

import "github.com/lanshare/storagecore/internal/filepool"

// Config carries the settings every File needs at construction time,
// without internal/fsentry importing the config package directly (which
// would pull viper into a package that should stay a plain entity
// model). cmd/storagecli builds this value from the viper-backed config
// and hands it to internal/cache.New.
type Config struct {
	// ChunkSize is CHUNK_SIZE from the spec: every chunk except
	// possibly the last is exactly this many bytes.
	ChunkSize int64

	// UnfinishedSuffix is appended to the name of a file while it is
	// being downloaded (default ".unfinished").
	UnfinishedSuffix string

	// MinimumFreeSpace refuses new unfinished allocations once the
	// host filesystem has less free space than this, in bytes. Zero
	// disables the check.
	MinimumFreeSpace int64
}

// Entry is the common surface shared by *File and *Directory, used for
// the Cache's name index and search.
type Entry interface {
	Name() string
	Size() int64
	FullPath() string
}

// Registry is the capability-set interface a File or Directory uses to
// notify its owning Cache of mutations, without internal/fsentry
// importing internal/cache (which would create an import cycle, since
// internal/cache necessarily imports internal/fsentry to manipulate
// entries). internal/cache.Cache implements this interface; see
// SPEC_FULL.md's "Observer plumbing" design note.
type Registry interface {
	// FilePool returns the process-wide pool of open file handles.
	FilePool() *filepool.Pool

	// Config returns the storage-core's configuration.
	Config() Config

	// OnChunkHashKnown is called whenever a chunk's hash becomes known
	// (computed or restored) and it has at least one known byte.
	OnChunkHashKnown(c *Chunk)

	// OnChunkRemoved is called whenever a chunk is unregistered:
	// deleted, reset, or its owning file replaced.
	OnChunkRemoved(c *Chunk)

	// OnEntryAdded indexes entry by its normalized name.
	OnEntryAdded(e Entry)

	// OnEntryRemoved removes entry from the name index.
	OnEntryRemoved(e Entry)
}
