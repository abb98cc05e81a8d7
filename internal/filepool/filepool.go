// Package filepool implements a process-wide pool of open *os.File
// handles, keyed by (path, mode), with reference counting and forced
// eviction. It is the single point of contact between the storage core
// and the host filesystem's open-file-descriptor budget.
package filepool

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Mode is the access mode a Handle is opened for.
type Mode int

const (
	// ReadOnly handles never write; many readers may share one handle.
	ReadOnly Mode = iota
	// ReadWrite handles may write; at most one is pooled per path.
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "rw"
	}
	return "ro"
}

// ErrOpenFailed wraps any error returned by the host filesystem while
// opening or creating a file.
var ErrOpenFailed = errors.New("filepool: open failed")

// Handle is a reference into the pool. Callers must not close the
// underlying *os.File themselves; it is owned by the pool until
// released via Pool.Release or Pool.ForceReleaseAll.
type Handle struct {
	key  key
	file *os.File

	// ioMu serializes the seek+IO pairs of sharers of a single handle,
	// per the spec's "mutual exclusion on seek+IO pairs" guarantee.
	ioMu sync.Mutex

	useCount int
	closed   bool
}

// File returns the underlying *os.File for IO. Callers must hold the
// handle's IO lock (via WithIO) around any seek+read/write pair.
func (h *Handle) File() *os.File { return h.file }

// WithIO runs fn while holding the handle's IO-serialization lock,
// guaranteeing fn's seek+IO pair is not interleaved with another
// sharer's.
func (h *Handle) WithIO(fn func(f *os.File) (int, error)) (int, error) {
	h.ioMu.Lock()
	defer h.ioMu.Unlock()
	return fn(h.file)
}

type key struct {
	path string
	mode Mode
}

// Pool is a process-wide registry of open file handles.
type Pool struct {
	mu      sync.Mutex
	entries map[key]*Handle
	log     *logrus.Logger
}

// New creates an empty Pool. log may be nil, in which case logrus's
// standard logger is used.
func New(log *logrus.Logger) *Pool {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pool{entries: make(map[key]*Handle), log: log}
}

// Open returns a handle suitable for mode, opening or creating the file
// as needed. createdNewFile reports whether the file did not previously
// exist on disk (ReadWrite only; ReadOnly never creates).
//
// For any path, at most one ReadWrite handle exists in the pool at a
// time; repeated ReadWrite opens of the same path share it.
func (p *Pool) Open(path string, mode Mode) (handle *Handle, createdNewFile bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := key{path: path, mode: mode}
	if existing, ok := p.entries[k]; ok && !existing.closed {
		existing.useCount++
		return existing, false, nil
	}

	flags := os.O_RDONLY
	created := false
	if mode == ReadWrite {
		if _, statErr := os.Stat(path); statErr != nil {
			if !os.IsNotExist(statErr) {
				return nil, false, fmt.Errorf("%w: stat %s: %v", ErrOpenFailed, path, statErr)
			}
			created = true
		}
		flags = os.O_RDWR | os.O_CREATE
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("%w: open %s: %v", ErrOpenFailed, path, err)
	}

	h := &Handle{key: k, file: f, useCount: 1}
	p.entries[k] = h
	p.log.WithFields(logrus.Fields{"path": path, "mode": mode, "created": created}).Debug("filepool: opened handle")
	return h, created, nil
}

// Release decrements h's use count. When the count reaches zero, or
// forceClose is true, the handle is closed and evicted from the pool.
func (p *Pool) Release(h *Handle, forceClose bool) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	h.useCount--
	if h.useCount > 0 && !forceClose {
		return
	}
	p.closeAndEvictLocked(h)
}

// ForceReleaseAll closes every pooled handle for path immediately,
// regardless of use count. It is synchronous: on return, no further IO
// can proceed on the old handles.
func (p *Pool) ForceReleaseAll(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, mode := range []Mode{ReadOnly, ReadWrite} {
		if h, ok := p.entries[key{path: path, mode: mode}]; ok {
			p.closeAndEvictLocked(h)
		}
	}
}

func (p *Pool) closeAndEvictLocked(h *Handle) {
	if h.closed {
		return
	}
	h.closed = true
	delete(p.entries, h.key)
	if err := h.file.Close(); err != nil {
		p.log.WithError(err).WithField("path", h.key.path).Warn("filepool: error closing handle")
	}
}
