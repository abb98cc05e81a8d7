package hashpersist

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lanshare/storagecore/internal/cache"
	"github.com/lanshare/storagecore/internal/fsentry"
	"github.com/lanshare/storagecore/internal/hash"
)

func newTestCache(chunkSize int64) *cache.Cache {
	return cache.New(fsentry.Config{ChunkSize: chunkSize, UnfinishedSuffix: ".unfinished"}, nil)
}

func TestSaveAndRestoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hashcache")
	store, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	shareRoot := t.TempDir()
	modTime := time.Unix(1700000000, 0)
	c := newTestCache(4)
	sd := fsentry.NewSharedDirectory(c, mustHash(0xAB), shareRoot, "share")

	var h hash.Hash
	h[0] = 0x11
	f, err := fsentry.NewFile(&sd.Directory, "a.bin", 4, modTime, []hash.Hash{h}, false)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	if err := store.Save(sd); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Simulate a fresh process: a brand-new in-memory tree for the same
	// shared directory, scanned again but without any hash known yet.
	c2 := newTestCache(4)
	sd2 := fsentry.NewSharedDirectory(c2, mustHash(0xAB), shareRoot, "share")
	f2, err := fsentry.NewFile(&sd2.Directory, "a.bin", 4, modTime, nil, false)
	if err != nil {
		t.Fatalf("NewFile (2nd tree): %v", err)
	}

	restored, total, err := store.Restore(sd2)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if total != 1 || restored != 1 {
		t.Fatalf("Restore() = (%d, %d), want (1, 1)", restored, total)
	}
	if !f2.Chunks()[0].HasHash() {
		t.Fatal("restored chunk should have its hash back")
	}
	_ = f
}

func TestRestoreMissingRecordIsNotAnError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hashcache")
	store, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	c := newTestCache(4)
	sd := fsentry.NewSharedDirectory(c, mustHash(0xCD), t.TempDir(), "share")

	restored, total, err := store.Restore(sd)
	if err != nil {
		t.Fatalf("Restore on a never-saved shared directory should not error: %v", err)
	}
	if restored != 0 || total != 0 {
		t.Fatalf("Restore() = (%d, %d), want (0, 0)", restored, total)
	}
}

func mustHash(b byte) hash.Hash {
	var h hash.Hash
	h[0] = b
	return h
}
