package holder

import "testing"

func TestNewSentinelStartsEmpty(t *testing.T) {
	a := NewArena()
	s := a.NewSentinel()
	if !a.Empty(s) {
		t.Fatalf("expected a fresh sentinel's chain to be empty")
	}
	if _, ok := a.Tail(s); ok {
		t.Fatalf("expected Tail on an empty chain to report false")
	}
}

func TestLinkHeadAndTailOrdering(t *testing.T) {
	a := NewArena()
	s := a.NewSentinel()
	h1 := a.NewHolder()
	a.At(h1).ObjNum = 1
	a.LinkHead(s, h1)

	h2 := a.NewHolder()
	a.At(h2).ObjNum = 2
	a.LinkHead(s, h2)

	// h2 was linked at head most recently, so walking from the sentinel's
	// head yields h2 first.
	var order []ObjNum
	a.ForEach(s, func(idx int32, h *Holder) { order = append(order, h.ObjNum) })
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("expected [2 1], got %v", order)
	}

	tail, ok := a.Tail(s)
	if !ok || a.At(tail).ObjNum != 1 {
		t.Fatalf("expected tail to be the first-linked holder (objnum 1)")
	}
}

func TestUnlinkRemovesFromChain(t *testing.T) {
	a := NewArena()
	s := a.NewSentinel()
	h1 := a.NewHolder()
	a.At(h1).ObjNum = 1
	a.LinkTail(s, h1)
	h2 := a.NewHolder()
	a.At(h2).ObjNum = 2
	a.LinkTail(s, h2)

	a.Unlink(h1)

	var order []ObjNum
	a.ForEach(s, func(idx int32, h *Holder) { order = append(order, h.ObjNum) })
	if len(order) != 1 || order[0] != 2 {
		t.Fatalf("expected only objnum 2 to remain, got %v", order)
	}
}

func TestForEachSurvivesRelinkDuringWalk(t *testing.T) {
	a := NewArena()
	src := a.NewSentinel()
	dst := a.NewSentinel()
	for i := ObjNum(1); i <= 3; i++ {
		h := a.NewHolder()
		a.At(h).ObjNum = i
		a.LinkTail(src, h)
	}

	a.ForEach(src, func(idx int32, h *Holder) {
		a.Unlink(idx)
		a.LinkHead(dst, idx)
	})

	if !a.Empty(src) {
		t.Fatalf("expected source chain to end up empty")
	}
	var moved []ObjNum
	a.ForEach(dst, func(idx int32, h *Holder) { moved = append(moved, h.ObjNum) })
	if len(moved) != 3 {
		t.Fatalf("expected all 3 holders to have moved, got %v", moved)
	}
}

func TestLinkTailPreservesInsertionOrder(t *testing.T) {
	a := NewArena()
	s := a.NewSentinel()
	for i := ObjNum(1); i <= 3; i++ {
		h := a.NewHolder()
		a.At(h).ObjNum = i
		a.LinkTail(s, h)
	}
	var order []ObjNum
	a.ForEach(s, func(idx int32, h *Holder) { order = append(order, h.ObjNum) })
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected [1 2 3], got %v", order)
	}
}
