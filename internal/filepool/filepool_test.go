package filepool

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesAndShares(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	pool := New(nil)

	h1, created, err := pool.Open(path, ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !created {
		t.Fatalf("expected createdNewFile = true")
	}

	h2, created2, err := pool.Open(path, ReadWrite)
	if err != nil {
		t.Fatalf("Open (second): %v", err)
	}
	if created2 {
		t.Fatalf("second open should not report createdNewFile")
	}
	if h1 != h2 {
		t.Fatalf("expected the same pooled handle to be shared")
	}

	pool.Release(h1, false)
	pool.Release(h2, false)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file should exist on disk: %v", err)
	}
}

func TestForceReleaseAllClosesImmediately(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")

	pool := New(nil)
	h, _, err := pool.Open(path, ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	pool.ForceReleaseAll(path)

	if _, err := h.File().Write([]byte("x")); err == nil {
		t.Fatalf("expected write on force-closed handle to fail")
	}
}

func TestReadOnlyOpenMissingFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.bin")

	pool := New(nil)
	if _, _, err := pool.Open(path, ReadOnly); err == nil {
		t.Fatalf("expected error opening missing file read-only")
	}
}
