package fsentry

import (
	"errors"
	"testing"
	"time"
)

func TestChunkOrphanedAfterFileDeleted(t *testing.T) {
	_, sd := newTestShare(t, 4)
	f, err := NewFile(&sd.Directory, "f.bin", 4, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	chunks := f.Chunks()
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]

	f.Del()

	buf := make([]byte, 4)
	if _, err := c.Read(buf, 0, 4); !errors.Is(err, ErrChunkOrphaned) {
		t.Fatalf("Read on orphaned chunk: got %v, want ErrChunkOrphaned", err)
	}
	if _, err := c.Write(buf, 4, 0); !errors.Is(err, ErrChunkOrphaned) {
		t.Fatalf("Write on orphaned chunk: got %v, want ErrChunkOrphaned", err)
	}
}

func TestChunkSetKnownBytesRangeChecked(t *testing.T) {
	_, sd := newTestShare(t, 4)
	f, err := NewFile(&sd.Directory, "g.bin", 4, time.Now(), nil, true)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	c := f.Chunks()[0]

	if err := c.SetKnownBytes(5); err == nil {
		t.Fatal("expected an error for known bytes exceeding chunk size")
	}
	if err := c.SetKnownBytes(-1); err == nil {
		t.Fatal("expected an error for negative known bytes")
	}
}
