/*
Copyright (C) 2023  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package holder implements the intrusive, arena-indexed chain cells the
// object cache threads objects through (spec.md §4.4/§9). Pointer-linked
// cache.c lists become prev/next arena indices: a Go slice reallocates
// under append, so real pointers into it don't survive growth, while
// indices do.
package holder

// ObjNum identifies a persisted object. None marks a holder that carries no
// live object body (a free shell on the inactive chain, or a sentinel).
type ObjNum int64

const None ObjNum = -1

// Holder is one cache cell: either a live object body (ObjNum != None) or an
// empty, reusable shell. Sentinels are holders too, with Sentinel set, so
// chain code never special-cases the list head/tail.
type Holder struct {
	ObjNum ObjNum
	Refs   int32
	U      int32 // aging counter: +10 on access, halved per cleanup pass
	Dirty  bool
	Dead   bool
	Body   []byte

	// AttachedFile/AttachedConnection name the connection a live object is
	// currently bound to, structural fields only: spec.md §9 keeps the
	// attached-file sweep out of scope, so nothing in this package inspects
	// them besides carrying them across Get/Discard.
	AttachedFile       string
	AttachedConnection string

	Sentinel bool
	prev     int32
	next     int32
}

// Arena owns the backing storage for every chain cell used by a cache. Real
// holders and sentinels are allocated from the same slice so that prev/next
// are always valid indices into one contiguous array.
type Arena struct {
	nodes []Holder
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// At returns a mutable pointer to the node at idx.
func (a *Arena) At(idx int32) *Holder { return &a.nodes[idx] }

func (a *Arena) alloc(h Holder) int32 {
	a.nodes = append(a.nodes, h)
	return int32(len(a.nodes) - 1)
}

// NewSentinel allocates a new, empty circular chain and returns its
// sentinel index.
func (a *Arena) NewSentinel() int32 {
	idx := a.alloc(Holder{ObjNum: None, Sentinel: true})
	n := a.At(idx)
	n.prev, n.next = idx, idx
	return idx
}

// NewHolder allocates a fresh, unlinked holder.
func (a *Arena) NewHolder() int32 {
	return a.alloc(Holder{ObjNum: None})
}

// LinkHead splices node in right after sentinel.
func (a *Arena) LinkHead(sentinel, node int32) {
	s := a.At(sentinel)
	n := a.At(node)
	n.prev = sentinel
	n.next = s.next
	a.At(n.next).prev = node
	s.next = node
}

// LinkTail splices node in right before sentinel.
func (a *Arena) LinkTail(sentinel, node int32) {
	s := a.At(sentinel)
	n := a.At(node)
	n.next = sentinel
	n.prev = s.prev
	a.At(n.prev).next = node
	s.prev = node
}

// Unlink removes node from whatever chain currently holds it. node's own
// prev/next are left stale until the caller relinks it elsewhere.
func (a *Arena) Unlink(node int32) {
	n := a.At(node)
	a.At(n.prev).next = n.next
	a.At(n.next).prev = n.prev
}

// Tail returns the index right before sentinel, or false if the chain is
// empty.
func (a *Arena) Tail(sentinel int32) (int32, bool) {
	s := a.At(sentinel)
	if s.prev == sentinel {
		return 0, false
	}
	return s.prev, true
}

// Empty reports whether sentinel's chain has no real holders.
func (a *Arena) Empty(sentinel int32) bool {
	s := a.At(sentinel)
	return s.next == sentinel
}

// ForEach walks every real holder in sentinel's chain. fn may unlink and
// relink idx (onto a different chain) during the call; ForEach captures
// idx's next pointer before invoking fn so the walk survives that.
func (a *Arena) ForEach(sentinel int32, fn func(idx int32, h *Holder)) {
	idx := a.At(sentinel).next
	for idx != sentinel {
		next := a.At(idx).next
		fn(idx, a.At(idx))
		idx = next
	}
}
