package fsentry

import (
	"fmt"
	"sync"

	"github.com/lanshare/storagecore/internal/hash"
)

// Directory is an in-memory node of a shared tree: an ordered set of
// subdirectories and files with a cumulative byte size maintained
// incrementally as children are added, removed, or resized.
type Directory struct {
	mu sync.Mutex

	name   string
	parent *Directory // nil only for the Directory embedded in a SharedDirectory
	root   *SharedDirectory

	subdirs []*Directory
	files   []*File

	size     int64
	registry Registry
}

// SharedDirectory is a Directory that is the root of a shared tree. It
// has a stable id, persistent across restarts, and an absolute
// filesystem mount path.
type SharedDirectory struct {
	Directory

	id       hash.Hash
	rootPath string
}

// NewSharedDirectory creates a new share root. id must be stable across
// restarts (the caller is responsible for persisting/recovering it);
// rootPath is the absolute filesystem path it is mounted at; name is
// the share's display name, deliberately never folded into any child
// path string (see SPEC_FULL.md's "Open question — resolved").
func NewSharedDirectory(registry Registry, id hash.Hash, rootPath, name string) *SharedDirectory {
	sd := &SharedDirectory{id: id, rootPath: rootPath}
	sd.Directory = Directory{name: name, registry: registry}
	sd.Directory.root = sd
	return sd
}

// ID returns the share's stable identity.
func (sd *SharedDirectory) ID() hash.Hash { return sd.id }

// RootPath returns the absolute filesystem path this share is mounted
// at.
func (sd *SharedDirectory) RootPath() string { return sd.rootPath }

// NewDirectory creates a subdirectory of parent and links it in.
func NewDirectory(parent *Directory, name string) *Directory {
	d := &Directory{
		name:     name,
		parent:   parent,
		root:     parent.root,
		registry: parent.registry,
	}
	parent.addSubdir(d)
	return d
}

func (d *Directory) addSubdir(child *Directory) {
	d.mu.Lock()
	d.subdirs = append(d.subdirs, child)
	d.mu.Unlock()
}

// Name returns the directory's own name (not its path).
func (d *Directory) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Size returns the cumulative byte size of every descendant.
func (d *Directory) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// Root returns the enclosing SharedDirectory, recorded at construction.
func (d *Directory) Root() *SharedDirectory { return d.root }

// IsAChildOf reports whether other is an ancestor of d.
func (d *Directory) IsAChildOf(other *Directory) bool {
	for p := d.parent; p != nil; p = p.parent {
		if p == other {
			return true
		}
	}
	return false
}

// Path returns the path of the directory that contains d, relative to
// the enclosing SharedDirectory: "/" followed by the name of every
// ancestor directory below the SharedDirectory, each followed by "/".
// The SharedDirectory's own name is never included. A directory rooted
// directly under a SharedDirectory, and the SharedDirectory itself,
// report "/".
func (d *Directory) Path() string {
	if d.parent == nil {
		// d is the SharedDirectory's own embedded Directory.
		return "/"
	}
	return entryPathPrefix(d.parent)
}

// FullPath returns the absolute filesystem path of d.
func (d *Directory) FullPath() string {
	if d.parent == nil {
		return d.root.rootPath
	}
	return d.root.rootPath + entryPathPrefix(d.parent) + d.name
}

// entryPathPrefix computes the path string to prepend to the name of a
// child of dir, per Directory.Path()'s contract. It never embeds the
// enclosing SharedDirectory's own name, matching the original source's
// asymmetry (File::getPath / Directory::getPath never call
// SharedDirectory::getName()).
func entryPathPrefix(dir *Directory) string {
	if dir.parent == nil {
		return "/"
	}
	return entryPathPrefix(dir.parent) + dir.name + "/"
}

func (d *Directory) rename(newName string) {
	d.mu.Lock()
	d.name = newName
	d.mu.Unlock()
}

// Rename changes d's own name and notifies the registry so the entry
// index can re-key it.
func (d *Directory) Rename(newName string) {
	d.registry.OnEntryRemoved(d)
	d.rename(newName)
	d.registry.OnEntryAdded(d)
}

// add links a freshly constructed File into d's children and
// propagates its size upward.
func (d *Directory) add(f *File) {
	d.mu.Lock()
	d.files = append(d.files, f)
	d.mu.Unlock()
	d.propagateSizeDelta(f.Size())
}

// fileDeleted unlinks f from d's children and propagates the size
// decrease upward.
func (d *Directory) fileDeleted(f *File) {
	d.mu.Lock()
	for i, existing := range d.files {
		if existing == f {
			d.files = append(d.files[:i], d.files[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
	d.propagateSizeDelta(-f.Size())
}

// fileNameChanged is a rename hook invoked by File; the directory's own
// bookkeeping does not depend on a child's name, but the hook exists so
// future indexing keyed by (dir, name) stays consistent at the call
// site that owns the mutation, matching the spec's "rename hooks"
// responsibility.
func (d *Directory) fileNameChanged(f *File) {
	_ = f // reserved for name-keyed child indices; none kept today.
}

// fileSizeChanged propagates a child File's size change up the tree.
func (d *Directory) fileSizeChanged(oldSize, newSize int64) {
	d.propagateSizeDelta(newSize - oldSize)
}

func (d *Directory) propagateSizeDelta(delta int64) {
	for cur := d; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		cur.size += delta
		cur.mu.Unlock()
	}
}

// Files returns a shallow copy of d's direct file children.
func (d *Directory) Files() []*File {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*File, len(d.files))
	copy(out, d.files)
	return out
}

// Subdirs returns a shallow copy of d's direct subdirectories.
func (d *Directory) Subdirs() []*Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Directory, len(d.subdirs))
	copy(out, d.subdirs)
	return out
}

func (d *Directory) String() string {
	return fmt.Sprintf("Directory(%s)", d.FullPath())
}
