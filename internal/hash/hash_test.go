package hash

import (
	"strings"
	"testing"
)

func TestFromBytesBadLength(t *testing.T) {
	if _, err := FromBytes([]byte{1, 2, 3}); err != ErrBadLength {
		t.Fatalf("expected ErrBadLength, got %v", err)
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	raw := make([]byte, Size)
	for i := range raw {
		raw[i] = byte(i)
	}
	h, err := FromBytes(raw)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if h.IsNull() {
		t.Fatalf("expected non-null hash")
	}
	if !strings.EqualFold(h.String(), "000102030405060708090a0b0c0d0e0f10111213") {
		t.Fatalf("unexpected hex: %s", h.String())
	}

	h2, err := FromHex(h.String())
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if h2 != h {
		t.Fatalf("round trip mismatch: %v != %v", h2, h)
	}
}

func TestNull(t *testing.T) {
	var h Hash
	if !h.IsNull() {
		t.Fatalf("zero value must be null")
	}
	if h != Null {
		t.Fatalf("zero value must equal Null")
	}
}

func TestSum(t *testing.T) {
	h, err := Sum(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if h.IsNull() {
		t.Fatalf("expected non-null hash")
	}
	h2, err := Sum(strings.NewReader("hello world"))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if h != h2 {
		t.Fatalf("Sum is not deterministic")
	}
}
