package ident

import "testing"

func TestGetInternsOnce(t *testing.T) {
	tab := New(4)
	a := tab.Get("hello")
	b := tab.Get("hello")
	if a != b {
		t.Fatalf("expected same id for repeated intern, got %d and %d", a, b)
	}
	if tab.Refs(a) != 2 {
		t.Fatalf("expected refs=2 after two Get calls, got %d", tab.Refs(a))
	}
	if tab.Name(a) != "hello" {
		t.Fatalf("expected name %q, got %q", "hello", tab.Name(a))
	}
}

func TestDistinctStringsGetDistinctIds(t *testing.T) {
	tab := New(4)
	a := tab.Get("alpha")
	b := tab.Get("beta")
	if a == b {
		t.Fatalf("expected distinct ids for distinct strings")
	}
}

func TestDupIncrementsRefcount(t *testing.T) {
	tab := New(4)
	a := tab.Get("x")
	tab.Dup(a)
	if tab.Refs(a) != 2 {
		t.Fatalf("expected refs=2 after Dup, got %d", tab.Refs(a))
	}
}

func TestDiscardReclaimsAtZero(t *testing.T) {
	tab := New(4)
	a := tab.Get("reusable")
	tab.Discard(a)
	if tab.Refs(a) != 0 {
		t.Fatalf("expected refs=0 after discard, got %d", tab.Refs(a))
	}

	// re-interning the same text must work (it goes through the freelist).
	b := tab.Get("reusable")
	if tab.Name(b) != "reusable" {
		t.Fatalf("expected re-interned id to carry the right text")
	}
}

func TestDiscardPanicsOnDeadEntry(t *testing.T) {
	tab := New(4)
	a := tab.Get("only-one-ref")
	tab.Discard(a)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic discarding an already-zero-ref entry")
		}
	}()
	tab.Discard(a)
}

func TestNamePanicsOnDeadEntry(t *testing.T) {
	tab := New(4)
	a := tab.Get("gone")
	tab.Discard(a)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic naming a dead id")
		}
	}()
	tab.Name(a)
}

func TestGrowBeyondInitialCapacityPreservesLiveEntries(t *testing.T) {
	tab := New(2)
	ids := make([]Ident, 0, 64)
	for i := 0; i < 64; i++ {
		ids = append(ids, tab.Get(string(rune('a'+(i%26)))+string(rune('0'+(i/26)))))
	}
	for i, id := range ids {
		want := string(rune('a'+(i%26))) + string(rune('0'+(i/26)))
		if tab.Name(id) != want {
			t.Fatalf("entry %d: expected %q, got %q", i, want, tab.Name(id))
		}
	}
}

func TestUniquenessAcrossOverlappingLifetimes(t *testing.T) {
	tab := New(4)
	a1 := tab.Get("shared")
	a2 := tab.Get("shared")
	if a1 != a2 {
		t.Fatalf("overlapping interns of the same text must share an id")
	}
	tab.Discard(a1)
	// a2's reference is still live; the text must still resolve.
	if tab.Name(a2) != "shared" {
		t.Fatalf("expected surviving reference to keep resolving")
	}
	tab.Discard(a2)
}
