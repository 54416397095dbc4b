package buffer

import (
	"bytes"
	"testing"
)

func TestNewAndBytes(t *testing.T) {
	b := New(4)
	if b.Len() != 4 {
		t.Fatalf("expected len 4, got %d", b.Len())
	}
	if b.Refs() != 1 {
		t.Fatalf("expected fresh buffer to have refs=1, got %d", b.Refs())
	}
}

func TestCOWMutationLeavesDuplicateUntouched(t *testing.T) {
	b1 := FromBytes([]byte("hello"))
	b2 := b1.Dup() // refs now 2, b1 == b2 (same handle)
	before := append([]byte(nil), b1.Bytes()...)

	mutated, err := b1.Replace(0, 'H')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the duplicate's state (the bytes observed through the pre-mutation
	// view) must remain what it was at the time of duplication.
	if !bytes.Equal(b2.Bytes(), []byte("hello")) {
		t.Fatalf("expected the duplicate to still read %q, got %q", "hello", b2.Bytes())
	}
	if mutated.Refs() != 1 {
		t.Fatalf("expected COW copy to have refs=1, got %d", mutated.Refs())
	}
	if bytes.Equal(mutated.Bytes(), before) {
		t.Fatalf("expected mutation to actually change the copy")
	}
	_ = b2
}

func TestMutateInPlaceWhenSoleOwner(t *testing.T) {
	b := FromBytes([]byte("abc"))
	out, err := b.Replace(1, 'X')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte("aXc")) {
		t.Fatalf("expected in-place mutation, got %q", out.Bytes())
	}
}

func TestAppend(t *testing.T) {
	b1 := FromBytes([]byte("foo"))
	b2 := FromBytes([]byte("bar"))
	out := b1.Append(b2)
	if !bytes.Equal(out.Bytes(), []byte("foobar")) {
		t.Fatalf("expected foobar, got %q", out.Bytes())
	}
}

func TestAppendEmptySecondReturnsFirstUnchanged(t *testing.T) {
	b1 := FromBytes([]byte("foo"))
	b2 := New(0)
	out := b1.Append(b2)
	if out != b1 {
		t.Fatalf("expected identity return for empty append")
	}
}

func TestGetOutOfRange(t *testing.T) {
	b := FromBytes([]byte("ab"))
	if _, err := b.Get(5); err == nil {
		t.Fatalf("expected range fault")
	} else if f, ok := err.(*Fault); !ok || f.Kind != KindRange {
		t.Fatalf("expected a range Fault, got %#v", err)
	}
}

func TestAdd(t *testing.T) {
	b := FromBytes([]byte("ab"))
	out := b.Add('c')
	if !bytes.Equal(out.Bytes(), []byte("abc")) {
		t.Fatalf("expected abc, got %q", out.Bytes())
	}
}

func TestResizeGrowZeroFills(t *testing.T) {
	b := FromBytes([]byte("ab"))
	out, err := b.Resize(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte{'a', 'b', 0, 0}) {
		t.Fatalf("expected zero-padded grow, got %v", out.Bytes())
	}
}

func TestResizeShrink(t *testing.T) {
	b := FromBytes([]byte("abcd"))
	out, err := b.Resize(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte("ab")) {
		t.Fatalf("expected ab, got %q", out.Bytes())
	}
}

func TestTailIdentityAtOne(t *testing.T) {
	b := FromBytes([]byte("abcdef"))
	out, err := b.Tail(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != b {
		t.Fatalf("expected identity return for Tail(1)")
	}
}

func TestTail(t *testing.T) {
	b := FromBytes([]byte("abcdef"))
	out, err := b.Tail(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte("cdef")) {
		t.Fatalf("expected cdef, got %q", out.Bytes())
	}
}

func TestSubrangeWithinBounds(t *testing.T) {
	b := FromBytes([]byte("abcdef"))
	out, err := b.Subrange(2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte("cde")) {
		t.Fatalf("expected cde, got %q", out.Bytes())
	}
}

func TestSubrangePastEndZeroPads(t *testing.T) {
	b := FromBytes([]byte("ab"))
	out, err := b.Subrange(0, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte{'a', 'b', 0, 0, 0}) {
		t.Fatalf("expected zero-padded subrange, got %v", out.Bytes())
	}
}

func TestToStringDefaultNewlineSeparator(t *testing.T) {
	b := FromBytes([]byte("abc\ndef\x01ghi"))
	got := b.ToString()
	want := "abc\\ndefghi" // \x01 is not printable, dropped
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestToStringsSplitAndRejoinRoundTrip(t *testing.T) {
	sep := FromBytes([]byte("|"))
	packed := FromStrings([]string{"a", "b", "c"}, sep)
	result := packed.ToStrings([]byte("|"))
	if len(result) != 4 {
		t.Fatalf("expected 4 elements (3 strings + trailing buffer), got %d", len(result))
	}
	for i, want := range []string{"a", "b", "c"} {
		got, ok := result[i].(string)
		if !ok || got != want {
			t.Fatalf("element %d: expected string %q, got %#v", i, want, result[i])
		}
	}
	tail, ok := result[3].(*Buffer)
	if !ok {
		t.Fatalf("expected trailing element to be a *Buffer, got %#v", result[3])
	}
	if tail.Len() != 0 {
		t.Fatalf("expected empty trailing buffer, got %q", tail.Bytes())
	}
}

func TestToStringsMultiByteSeparatorRequiresFullMatch(t *testing.T) {
	b := FromBytes([]byte("a|xb||c"))
	result := b.ToStrings([]byte("||"))
	if len(result) != 2 {
		t.Fatalf("expected 2 elements, got %d: %#v", len(result), result)
	}
	if result[0].(string) != "a|xb" {
		t.Fatalf("expected %q, got %q", "a|xb", result[0])
	}
	tail := result[1].(*Buffer)
	if !bytes.Equal(tail.Bytes(), []byte("c")) {
		t.Fatalf("expected tail %q, got %q", "c", tail.Bytes())
	}
}

func TestFromStringEscapeDecoding(t *testing.T) {
	b := FromString(`a\nb\tc\\d`)
	want := "a\nb\tc\\d"
	if string(b.Bytes()) != want {
		t.Fatalf("expected %q, got %q", want, b.Bytes())
	}
}

func TestFromStringsDefaultCRLFSeparator(t *testing.T) {
	b := FromStrings([]string{"a", "b"}, nil)
	want := "a\r\nb\r\n"
	if string(b.Bytes()) != want {
		t.Fatalf("expected %q, got %q", want, b.Bytes())
	}
}
