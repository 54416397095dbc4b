package blockstore

import (
	"bytes"
	"testing"
)

func TestPlainCodecRoundTrip(t *testing.T) {
	c := NewCodec()
	payload := []byte("hello, coldc object")
	encoded := c.Encode(payload)
	decoded, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("expected %q, got %q", payload, decoded)
	}
}

func TestPlainCodecDetectsDelobjTag(t *testing.T) {
	c := NewCodec()
	raw := make([]byte, BlockSize)
	copy(raw, delobjTag)
	if _, err := c.Decode(raw); err != ErrDeletedObject {
		t.Fatalf("expected ErrDeletedObject, got %v", err)
	}
}

func TestLZ4CodecRoundTrip(t *testing.T) {
	c := NewLZ4Codec()
	payload := bytes.Repeat([]byte("repeat me for compressibility "), 50)
	encoded := c.Encode(payload)
	if len(encoded) >= len(payload) {
		t.Fatalf("expected a highly repetitive payload to compress, got %d >= %d", len(encoded), len(payload))
	}
	decoded, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("decoded payload mismatch")
	}
}

func TestLZ4CodecSmallPayloadRoundTrip(t *testing.T) {
	c := NewLZ4Codec()
	payload := []byte("x")
	encoded := c.Encode(payload)
	decoded, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Fatalf("expected %q, got %q", payload, decoded)
	}
}
