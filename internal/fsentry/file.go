package fsentry

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lanshare/storagecore/internal/filepool"
	"github.com/lanshare/storagecore/internal/hash"
	"github.com/lanshare/storagecore/internal/sparse"
	"github.com/sirupsen/logrus"
)

// File is a physical file entity: it knows its name, size, and last
// modified date, and whether it is complete or still an in-progress
// download. See SPEC_FULL.md §4.4.
type File struct {
	mu sync.Mutex // entryMutex: guards name, size, complete, dateLastModified, chunks

	parent   *Directory
	registry Registry
	log      *logrus.Logger

	name             string
	size             int64
	dateLastModified time.Time
	complete         bool
	chunkSizeConst   int64

	chunks []*Chunk

	readLock, writeLock sync.Mutex

	numDataReader, numDataWriter int
	readHandle, writeHandle      *filepool.Handle
}

// FileRecord is the persistence DTO for a File's chunk-hash state, used
// by C7 HashPersistence.
type FileRecord struct {
	Name             string
	Size             int64
	DateLastModified time.Time
	Chunks           []ChunkRecord
}

// NewFile creates a new File into dir. hashes may be shorter than the
// chunk count; missing hashes are stored as null. If createPhysically
// is true and size > 0, the name is suffixed with the configured
// unfinished marker and a sparse file of the requested size is
// allocated on disk; on allocation failure the entity is not linked
// into dir and ErrUnableToCreateNewFile is returned.
func NewFile(dir *Directory, name string, size int64, dateLastModified time.Time, hashes []hash.Hash, createPhysically bool) (*File, error) {
	cfg := dir.registry.Config()
	effectiveName := name
	if createPhysically && size > 0 {
		effectiveName = name + cfg.UnfinishedSuffix
	}

	f := &File{
		parent:           dir,
		registry:         dir.registry,
		log:              logrus.StandardLogger(),
		name:             effectiveName,
		size:             size,
		dateLastModified: dateLastModified,
		complete:         !isUnfinished(effectiveName, cfg.UnfinishedSuffix),
		chunkSizeConst:   cfg.ChunkSize,
	}

	if createPhysically {
		if err := f.createPhysicalFile(); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	f.setHashesLocked(hashes)
	complete := f.complete
	f.mu.Unlock()

	dir.add(f)
	if complete {
		// Unfinished files enter the name index in SetAsComplete.
		dir.registry.OnEntryAdded(f)
	}
	return f, nil
}

func isUnfinished(name, suffix string) bool {
	return suffix != "" && strings.HasSuffix(name, suffix)
}

// Name returns the file's current name, including the unfinished
// suffix while incomplete.
func (f *File) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

// Size returns the file's declared size in bytes.
func (f *File) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// DateLastModified returns the last known modification time.
func (f *File) DateLastModified() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dateLastModified
}

// IsComplete reports whether the file has finished downloading: all
// chunks known, unfinished suffix removed.
func (f *File) IsComplete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.complete
}

// Root returns the enclosing SharedDirectory.
func (f *File) Root() *SharedDirectory { return f.parent.Root() }

// Path returns the path prefix of f within its SharedDirectory, never
// including the SharedDirectory's own name. See Directory.Path.
func (f *File) Path() string {
	return entryPathPrefix(f.parent)
}

// FullPath returns the absolute filesystem path of f.
func (f *File) FullPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fullPathLocked()
}

func (f *File) fullPathLocked() string {
	return f.parent.Root().rootPath + entryPathPrefix(f.parent) + f.name
}

// Chunks returns a shallow copy of f's ordered chunk sequence.
func (f *File) Chunks() []*Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Chunk, len(f.chunks))
	copy(out, f.chunks)
	return out
}

// NbChunks returns ceil(size / CHUNK_SIZE), or 0 when size is 0.
func (f *File) NbChunks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nbChunksLocked()
}

func (f *File) nbChunksLocked() int {
	if f.size == 0 {
		return 0
	}
	n := f.size / f.chunkSizeConst
	if f.size%f.chunkSizeConst != 0 {
		n++
	}
	return int(n)
}

func (f *File) chunkSizeOfLocked(i int) int64 {
	nb := f.nbChunksLocked()
	if i == nb-1 && f.size%f.chunkSizeConst != 0 {
		return f.size % f.chunkSizeConst
	}
	return f.chunkSizeConst
}

// chunkByteOffset returns the absolute byte offset of chunk i within
// the file.
func (f *File) chunkByteOffset(i int) int64 {
	return int64(i) * f.chunkSizeConst
}

// HasAllHashes reports whether every chunk has a known hash. A
// zero-size file never has "all hashes" (there is nothing to hash).
func (f *File) HasAllHashes() bool {
	f.mu.Lock()
	chunks := f.chunks
	size := f.size
	f.mu.Unlock()
	if size == 0 {
		return false
	}
	for _, c := range chunks {
		if !c.HasHash() {
			return false
		}
	}
	return true
}

// HasOneOrMoreHashes reports whether at least one chunk has a known
// hash.
func (f *File) HasOneOrMoreHashes() bool {
	for _, c := range f.Chunks() {
		if c.HasHash() {
			return true
		}
	}
	return false
}

// HasAParentDir reports whether dir is f's direct parent or an
// ancestor of it.
func (f *File) HasAParentDir(dir *Directory) bool {
	if f.parent == dir {
		return true
	}
	return f.parent.IsAChildOf(dir)
}

// MoveInto relinks f under a new parent directory, propagating size.
func (f *File) MoveInto(dir *Directory) {
	f.mu.Lock()
	old := f.parent
	f.mu.Unlock()
	if old == dir {
		return
	}
	old.fileDeleted(f)
	f.mu.Lock()
	f.parent = dir
	f.mu.Unlock()
	dir.add(f)
}

// Rename changes f's name and notifies its parent directory.
func (f *File) Rename(newName string) {
	f.mu.Lock()
	f.name = newName
	f.mu.Unlock()
	f.parent.fileNameChanged(f)
}

// setHashesLocked builds f.chunks from hashes. Caller must hold f.mu.
// The number of given hashes may not match the total chunk count: too
// few hashes leave the remainder null.
func (f *File) setHashesLocked(hashes []hash.Hash) {
	nb := f.nbChunksLocked()
	f.chunks = make([]*Chunk, 0, nb)
	for i := 0; i < nb; i++ {
		var knownBytes int64
		if f.complete {
			knownBytes = f.chunkSizeOfLocked(i)
		}

		h := hash.Null
		if i < len(hashes) {
			h = hashes[i]
		}

		chunk := newChunk(f, i, f.chunkSizeOfLocked(i), knownBytes, h)
		f.chunks = append(f.chunks, chunk)

		if !h.IsNull() && chunk.knownBytes == chunk.chunkSize {
			f.registry.OnChunkHashKnown(chunk)
		}
	}
}

// createPhysicalFile allocates a new sparse physical file sized to
// f.size. The caller must not hold f.mu.
func (f *File) createPhysicalFile() error {
	f.mu.Lock()
	size := f.size
	name := f.name
	suffix := f.registry.Config().UnfinishedSuffix
	path := f.fullPathLocked()
	minFree := f.registry.Config().MinimumFreeSpace
	f.mu.Unlock()

	if size > 0 && !isUnfinished(name, suffix) {
		f.log.Errorf("fsentry: createPhysicalFile called without the unfinished suffix: %s", name)
	}

	if minFree > 0 {
		if free, err := diskFreeSpace(filepath.Dir(path)); err == nil && free < minFree {
			return fmt.Errorf("%w: %w: %d bytes free, need %d", ErrUnableToCreateNewFile, ErrMinimumFreeSpace, free, minFree)
		}
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnableToCreateNewFile, err)
	}

	if err := file.Truncate(size); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("%w: %v", ErrUnableToCreateNewFile, err)
	}

	if err := sparse.MarkSparse(file); err != nil {
		f.log.WithError(err).Warn("fsentry: failed to mark file as sparse")
	}

	info, statErr := file.Stat()
	file.Close()

	f.mu.Lock()
	if statErr == nil {
		f.dateLastModified = info.ModTime()
	}
	f.mu.Unlock()
	return nil
}

// newDataWriterCreated increments the writer refcount and, on the 0→1
// transition, obtains a ReadWrite handle from the FilePool. If that
// open also created the physical file (it had been deleted out from
// under us), every chunk with nonzero knownBytes is reset to zero,
// unregistered, and ErrFileReset is returned.
func (f *File) newDataWriterCreated() error {
	f.writeLock.Lock()
	defer f.writeLock.Unlock()

	f.numDataWriter++
	if f.numDataWriter != 1 {
		return nil
	}

	path := f.FullPath()
	handle, created, err := f.registry.FilePool().Open(path, filepool.ReadWrite)
	if err != nil {
		f.numDataWriter--
		return fmt.Errorf("%w: %v", ErrUnableToOpenFileInWriteMode, err)
	}
	f.writeHandle = handle

	if !created {
		return nil
	}

	if err := handle.File().Truncate(f.Size()); err != nil {
		return fmt.Errorf("%w: %v", ErrUnableToOpenFileInWriteMode, err)
	}
	if err := sparse.MarkSparse(handle.File()); err != nil {
		f.log.WithError(err).Warn("fsentry: failed to mark recreated file as sparse")
	}

	fileReset := false
	for _, c := range f.Chunks() {
		if hadProgress := c.resetKnownBytes(); hadProgress {
			f.registry.OnChunkRemoved(c)
			fileReset = true
		}
	}
	if fileReset {
		return ErrFileReset
	}
	return nil
}

// newDataReaderCreated is the symmetric read-mode acquisition.
func (f *File) newDataReaderCreated() error {
	f.readLock.Lock()
	defer f.readLock.Unlock()

	f.numDataReader++
	if f.numDataReader != 1 {
		return nil
	}

	path := f.FullPath()
	handle, _, err := f.registry.FilePool().Open(path, filepool.ReadOnly)
	if err != nil {
		f.numDataReader--
		return fmt.Errorf("%w: %v", ErrUnableToOpenFileInReadMode, err)
	}
	f.readHandle = handle
	return nil
}

func (f *File) dataWriterDeleted() {
	f.writeLock.Lock()
	defer f.writeLock.Unlock()
	f.numDataWriter--
	if f.numDataWriter == 0 {
		f.registry.FilePool().Release(f.writeHandle, false)
		f.writeHandle = nil
	}
}

func (f *File) dataReaderDeleted() {
	f.readLock.Lock()
	defer f.readLock.Unlock()
	f.numDataReader--
	if f.numDataReader == 0 {
		f.registry.FilePool().Release(f.readHandle, false)
		f.readHandle = nil
	}
}

// Write writes up to nbBytes of buf to the file at offset. The file is
// never resized by a write: if offset+nbBytes exceeds size, only the
// leading min(nbBytes, size-offset) bytes of buf are used.
func (f *File) Write(buf []byte, nbBytes int, offset int64) (int64, error) {
	f.writeLock.Lock()
	defer f.writeLock.Unlock()

	size := f.Size()
	if f.writeHandle == nil || offset >= size {
		return 0, ErrIoError
	}

	maxSize := size - offset
	n := int64(nbBytes)
	if n > maxSize {
		n = maxSize
	}

	written, err := f.writeHandle.WithIO(func(file *os.File) (int, error) {
		if _, err := file.Seek(offset, 0); err != nil {
			return 0, err
		}
		return file.Write(buf[:n])
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIoError, err)
	}
	return int64(written), nil
}

// Read fills buf with up to maxBytesToRead bytes read from offset. If
// offset >= size, returns (0, nil): reading past the end is not an
// error.
func (f *File) Read(buf []byte, offset int64, maxBytesToRead int) (int, error) {
	f.readLock.Lock()
	defer f.readLock.Unlock()

	if f.readHandle == nil || offset >= f.Size() {
		return 0, nil
	}

	n, err := f.readHandle.WithIO(func(file *os.File) (int, error) {
		if _, err := file.Seek(offset, 0); err != nil {
			return 0, err
		}
		return file.Read(buf[:maxBytesToRead])
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: %v", ErrIoError, err)
	}
	return n, nil
}

// chunkComplete is called by a Chunk when its known-byte count reaches
// its chunk size. It notifies the registry that the chunk's hash is
// known (if any), then re-checks whole-file completion.
func (f *File) chunkComplete(c *Chunk) {
	f.mu.Lock()
	chunks := f.chunks
	f.mu.Unlock()

	if c.HasHash() {
		f.registry.OnChunkHashKnown(c)
	}

	nbComplete := 0
	for _, ch := range chunks {
		if ch.IsComplete() {
			nbComplete++
		}
	}
	if len(chunks) > 0 && nbComplete == len(chunks) {
		f.SetAsComplete()
	}
}

// SetAsComplete performs the unfinished→complete state transition: if
// any readers or writers are active, force-releases all pooled handles
// for the old path (which may block for seconds on slow devices, hence
// the documented entryMutex release/reacquire), then moves the file to
// its final name and, on success, strips the suffix and re-indexes the
// entry. The move is done as Link-then-Remove rather than Rename: a
// plain os.Rename on POSIX silently replaces an existing destination,
// whereas Link fails with EEXIST if one is already there, giving the
// clash detection the original source's Common::Global::rename (backed
// by QFile::rename, which also refuses to overwrite) relies on. If the
// target name is already taken, the file is left unfinished so a later
// completion attempt can retry.
func (f *File) SetAsComplete() {
	f.mu.Lock()
	suffix := f.registry.Config().UnfinishedSuffix
	if !isUnfinished(f.name, suffix) {
		f.mu.Unlock()
		return
	}

	oldPath := f.fullPathLocked()
	if f.numDataReader > 0 || f.numDataWriter > 0 {
		f.mu.Unlock()

		f.writeLock.Lock()
		f.readLock.Lock()
		f.registry.FilePool().ForceReleaseAll(oldPath)

		f.mu.Lock()
		f.writeHandle = nil
		f.readHandle = nil

		f.readLock.Unlock()
		f.writeLock.Unlock()
	}

	newName := strings.TrimSuffix(f.name, suffix)
	newPath := f.parent.Root().rootPath + entryPathPrefix(f.parent) + newName

	if err := os.Link(oldPath, newPath); err != nil {
		f.log.WithError(err).Errorf("fsentry: unable to rename %s to %s", oldPath, newPath)
		f.mu.Unlock()
		return
	}
	if err := os.Remove(oldPath); err != nil {
		f.log.WithError(err).Warnf("fsentry: renamed %s to %s but failed to remove the old unfinished path", oldPath, newPath)
	}

	f.complete = true
	if info, err := os.Stat(newPath); err == nil {
		f.dateLastModified = info.ModTime()
	}
	f.name = newName
	f.mu.Unlock()

	f.registry.OnEntryAdded(f)
}

// SetToUnfinished is the reverse transition, for re-downloading a
// finished file. The previous on-disk file is left alone; it is only
// overwritten at the next successful SetAsComplete rename.
func (f *File) SetToUnfinished(size int64, hashes []hash.Hash) error {
	f.registry.OnEntryRemoved(f)
	f.mu.Lock()

	oldChunks := f.chunks
	oldSize := f.size

	f.complete = false
	f.name += f.registry.Config().UnfinishedSuffix
	f.size = size
	f.dateLastModified = time.Now()
	f.mu.Unlock()

	for _, c := range oldChunks {
		f.registry.OnChunkRemoved(c)
		c.fileDeleted()
	}
	f.parent.fileSizeChanged(oldSize, size)

	f.mu.Lock()
	f.setHashesLocked(hashes)
	f.mu.Unlock()

	return f.createPhysicalFile()
}

// RestoreFromFileCache restores chunk hash/known-byte state from a
// persisted record, returning true iff the record matches current
// on-disk reality: size, name, (for finished files) last-modified
// timestamp, and chunk count must all match. Unfinished files skip the
// date check because the download is actively mutating them.
func (f *File) RestoreFromFileCache(rec FileRecord) bool {
	f.mu.Lock()
	suffix := f.registry.Config().UnfinishedSuffix
	match := rec.Size == f.size &&
		rec.Name == f.name &&
		(isUnfinished(f.name, suffix) || rec.DateLastModified.Equal(f.dateLastModified)) &&
		len(f.chunks) == len(rec.Chunks)
	chunks := f.chunks
	f.mu.Unlock()

	if !match {
		return false
	}

	for i, c := range chunks {
		c.RestoreFromRecord(rec.Chunks[i])
		if c.HasHash() && c.KnownBytes() > 0 {
			f.registry.OnChunkHashKnown(c)
		}
	}
	return true
}

// PopulateHashesFile returns the persistence DTO for f.
func (f *File) PopulateHashesFile() FileRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs := make([]ChunkRecord, len(f.chunks))
	for i, c := range f.chunks {
		recs[i] = c.PopulateRecord()
	}
	return FileRecord{Name: f.name, Size: f.size, DateLastModified: f.dateLastModified, Chunks: recs}
}

func (f *File) deleteAllChunks() {
	f.mu.Lock()
	chunks := f.chunks
	f.chunks = nil
	f.mu.Unlock()

	for _, c := range chunks {
		f.registry.OnChunkRemoved(c)
		c.fileDeleted()
	}
}

// Del unregisters f from its parent directory and the chunk-hash/entry
// indices, forcibly releases any pooled handles, and deletes no
// physical file (callers wanting the unfinished file removed too call
// RemoveUnfinishedFiles first, as DeleteIfIncomplete does).
func (f *File) Del() {
	f.parent.fileDeleted(f)
	f.deleteAllChunks()

	f.writeLock.Lock()
	f.registry.FilePool().Release(f.writeHandle, true)
	f.writeHandle = nil
	f.writeLock.Unlock()

	f.readLock.Lock()
	f.registry.FilePool().Release(f.readHandle, true)
	f.readHandle = nil
	f.readLock.Unlock()

	f.registry.OnEntryRemoved(f)
}

// RemoveUnfinishedFiles physically removes the on-disk unfinished file,
// if f is not complete. The file removed must end with the configured
// unfinished suffix.
func (f *File) RemoveUnfinishedFiles() {
	f.mu.Lock()
	complete := f.complete
	path := f.fullPathLocked()
	f.mu.Unlock()
	if complete {
		return
	}

	f.writeLock.Lock()
	f.readLock.Lock()
	f.registry.FilePool().ForceReleaseAll(path)
	f.writeHandle = nil
	f.readHandle = nil
	f.readLock.Unlock()
	f.writeLock.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		f.log.Warnf("fsentry: unable to delete unfinished file %s: %v", path, err)
	}
}

// DeleteIfIncomplete removes the physical unfinished file (if any) and
// then destroys f, provided it is not complete.
func (f *File) DeleteIfIncomplete() {
	if f.IsComplete() {
		return
	}
	f.RemoveUnfinishedFiles()
	f.Del()
}

// NewDataReader opens a scoped read session. Close it (defer
// session.Close()) when done; readers and writers must all be closed
// before the owning File's Del/DeleteIfIncomplete runs.
func (f *File) NewDataReader() (*ReadSession, error) {
	if err := f.newDataReaderCreated(); err != nil {
		return nil, err
	}
	return &ReadSession{f: f}, nil
}

// NewDataWriter opens a scoped write session. ErrFileReset is returned
// alongside a valid session when the physical file had to be recreated
// and prior chunk progress was discarded; callers may still use the
// session afterward.
func (f *File) NewDataWriter() (*WriteSession, error) {
	err := f.newDataWriterCreated()
	if err != nil && err != ErrFileReset {
		return nil, err
	}
	return &WriteSession{f: f}, err
}
