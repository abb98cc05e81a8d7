package fsentry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lanshare/storagecore/internal/hash"
)

func newTestShare(t *testing.T, chunkSize int64) (*fakeRegistry, *SharedDirectory) {
	t.Helper()
	root := t.TempDir()
	reg := newFakeRegistry(chunkSize, ".unfinished")
	sd := NewSharedDirectory(reg, hash.Null, root, "share")
	return reg, sd
}

func TestNewFileUnfinishedAllocatesSparseFile(t *testing.T) {
	_, sd := newTestShare(t, 8)

	f, err := NewFile(&sd.Directory, "movie.mp4", 20, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	if f.IsComplete() {
		t.Fatal("a freshly allocated nonempty file must start unfinished")
	}
	if f.Name() != "movie.mp4.unfinished" {
		t.Fatalf("Name() = %q, want suffix applied", f.Name())
	}
	if got, want := f.NbChunks(), 3; got != want {
		t.Fatalf("NbChunks() = %d, want %d", got, want)
	}

	info, err := os.Stat(f.FullPath())
	if err != nil {
		t.Fatalf("stat physical file: %v", err)
	}
	if info.Size() != 20 {
		t.Fatalf("physical file size = %d, want 20", info.Size())
	}
}

func TestNewFileZeroSizeIsImmediatelyComplete(t *testing.T) {
	_, sd := newTestShare(t, 8)
	f, err := NewFile(&sd.Directory, "empty.txt", 0, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if !f.IsComplete() {
		t.Fatal("a zero-size file has nothing left to download")
	}
	if f.Name() != "empty.txt" {
		t.Fatalf("Name() = %q, want no suffix", f.Name())
	}
}

func TestWriteCompleteChunkTriggersCompletionAndRename(t *testing.T) {
	reg, sd := newTestShare(t, 4)
	f, err := NewFile(&sd.Directory, "a.bin", 8, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	ws, err := f.NewDataWriter()
	if err != nil {
		t.Fatalf("NewDataWriter: %v", err)
	}
	defer ws.Close()

	if _, err := ws.Write([]byte("AAAA"), 4, 0); err != nil {
		t.Fatalf("write chunk 0: %v", err)
	}
	if err := f.Chunks()[0].SetKnownBytes(4); err != nil {
		t.Fatalf("SetKnownBytes chunk 0: %v", err)
	}
	if f.IsComplete() {
		t.Fatal("file should not be complete with one of two chunks done")
	}

	if _, err := ws.Write([]byte("BBBB"), 4, 4); err != nil {
		t.Fatalf("write chunk 1: %v", err)
	}
	if err := f.Chunks()[1].SetKnownBytes(4); err != nil {
		t.Fatalf("SetKnownBytes chunk 1: %v", err)
	}

	if !f.IsComplete() {
		t.Fatal("file should be complete once every chunk is fully known")
	}
	if f.Name() != "a.bin" {
		t.Fatalf("Name() = %q, want suffix stripped", f.Name())
	}
	if _, err := os.Stat(filepath.Join(sd.RootPath(), "a.bin.unfinished")); !os.IsNotExist(err) {
		t.Fatal("unfinished file should no longer exist after completion")
	}
	if reg.entryAddedCount() == 0 {
		t.Fatal("registry should have been notified of the completed entry")
	}
}

func TestSetAsCompleteRenameClashLeavesFileUnfinished(t *testing.T) {
	reg, sd := newTestShare(t, 4)
	f, err := NewFile(&sd.Directory, "clash.bin", 4, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	// A file already sits at the target name clash.bin would complete to.
	if err := os.WriteFile(filepath.Join(sd.RootPath(), "clash.bin"), []byte("existing"), 0644); err != nil {
		t.Fatalf("seed clashing file: %v", err)
	}

	ws, err := f.NewDataWriter()
	if err != nil {
		t.Fatalf("NewDataWriter: %v", err)
	}
	defer ws.Close()

	if _, err := ws.Write([]byte("AAAA"), 4, 0); err != nil {
		t.Fatalf("write chunk 0: %v", err)
	}
	if err := f.Chunks()[0].SetKnownBytes(4); err != nil {
		t.Fatalf("SetKnownBytes chunk 0: %v", err)
	}

	if f.IsComplete() {
		t.Fatal("a rename clash must leave the file unfinished")
	}
	if f.Name() != "clash.bin.unfinished" {
		t.Fatalf("Name() = %q, want suffix still present", f.Name())
	}
	if _, err := os.Stat(f.FullPath()); err != nil {
		t.Fatalf("unfinished file should still exist on disk: %v", err)
	}

	existing, err := os.ReadFile(filepath.Join(sd.RootPath(), "clash.bin"))
	if err != nil {
		t.Fatalf("clashing file should survive the failed rename: %v", err)
	}
	if string(existing) != "existing" {
		t.Fatalf("clashing file content = %q, want untouched", existing)
	}
	if reg.entryAddedCount() != 0 {
		t.Fatal("registry should not have been notified of a completion that never happened")
	}
}

func TestNewDataWriterCreatedResetsAfterOutOfBandDelete(t *testing.T) {
	_, sd := newTestShare(t, 4)
	f, err := NewFile(&sd.Directory, "reset.bin", 8, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	ws, err := f.NewDataWriter()
	if err != nil {
		t.Fatalf("NewDataWriter: %v", err)
	}
	if _, err := ws.Write([]byte("AAAA"), 4, 0); err != nil {
		t.Fatalf("write chunk 0: %v", err)
	}
	if err := f.Chunks()[0].SetKnownBytes(4); err != nil {
		t.Fatalf("SetKnownBytes chunk 0: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Something outside the storage core deletes the unfinished file
	// while nothing holds a session on it.
	if err := os.Remove(f.FullPath()); err != nil {
		t.Fatalf("simulate out-of-band delete: %v", err)
	}

	ws2, err := f.NewDataWriter()
	if !errors.Is(err, ErrFileReset) {
		t.Fatalf("NewDataWriter after out-of-band delete: err = %v, want ErrFileReset", err)
	}
	if ws2 == nil {
		t.Fatal("a usable session should still be returned alongside ErrFileReset")
	}
	defer ws2.Close()

	if got := f.Chunks()[0].KnownBytes(); got != 0 {
		t.Fatalf("chunk 0 knownBytes = %d, want 0 after reset", got)
	}
}

func TestReadPastEndOfFileReturnsNoError(t *testing.T) {
	_, sd := newTestShare(t, 4)
	f, err := NewFile(&sd.Directory, "b.bin", 4, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	rs, err := f.NewDataReader()
	if err != nil {
		t.Fatalf("NewDataReader: %v", err)
	}
	defer rs.Close()

	buf := make([]byte, 16)
	n, err := rs.Read(buf, 100, len(buf))
	if err != nil {
		t.Fatalf("Read past EOF returned error: %v", err)
	}
	if n != 0 {
		t.Fatalf("Read past EOF returned n=%d, want 0", n)
	}
}

func TestSetToUnfinishedDiscardsProgress(t *testing.T) {
	reg, sd := newTestShare(t, 4)
	f, err := NewFile(&sd.Directory, "c.bin", 4, time.Now(), nil, false)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	// Pretend c.bin already exists complete on disk.
	path := f.FullPath()
	if err := os.WriteFile(path, []byte("done"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if err := f.SetToUnfinished(8, nil); err != nil {
		t.Fatalf("SetToUnfinished: %v", err)
	}
	if f.IsComplete() {
		t.Fatal("file should be unfinished after SetToUnfinished")
	}
	if f.Size() != 8 {
		t.Fatalf("Size() = %d, want 8", f.Size())
	}
	if f.NbChunks() != 2 {
		t.Fatalf("NbChunks() = %d, want 2", f.NbChunks())
	}
	if reg.entryAddedCount() == 0 && len(reg.entryRemoved) == 0 {
		t.Fatal("registry should have observed the re-index around SetToUnfinished")
	}
}

func TestRestoreFromFileCacheRejectsMismatch(t *testing.T) {
	_, sd := newTestShare(t, 4)
	f, err := NewFile(&sd.Directory, "d.bin", 8, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	ok := f.RestoreFromFileCache(FileRecord{
		Name: f.Name(),
		Size: 999, // wrong size
		Chunks: []ChunkRecord{
			{}, {},
		},
	})
	if ok {
		t.Fatal("RestoreFromFileCache should reject a size mismatch")
	}
}

func TestDeleteIfIncompleteRemovesPhysicalFile(t *testing.T) {
	_, sd := newTestShare(t, 4)
	f, err := NewFile(&sd.Directory, "e.bin", 4, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	path := f.FullPath()

	f.DeleteIfIncomplete()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("unfinished file should have been removed from disk")
	}
}
