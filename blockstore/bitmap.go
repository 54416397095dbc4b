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

package blockstore

import "github.com/launix-de/NonLockingReadMap"

// BlockSize is the fixed logical block size of the object file (spec.md §4.3).
const BlockSize = 256

// BitBlockGrowth is the minimum growth step, in blocks, applied whenever the
// bitmap needs to extend (spec.md §4.3's DB_BITBLOCK).
const BitBlockGrowth = 512

// needed returns ceil(size/BlockSize).
func needed(size int) int {
	if size%BlockSize != 0 {
		return size/BlockSize + 1
	}
	return size / BlockSize
}

// bitmap tracks block occupancy. It is rebuilt from the index at startup
// and is never persisted, as spec.md §4.3 requires. It is backed by the
// teacher's own vendored NonBlockingBitMap, reused here purely for its
// growable get/set/iterate API (the core itself is single-threaded
// cooperative, so the lock-freedom is not load-bearing, just convenient).
type bitmap struct {
	bits   NonLockingReadMap.NonBlockingBitMap
	blocks int // number of blocks currently represented (rounded to BitBlockGrowth)
}

func newBitmap() *bitmap {
	return &bitmap{}
}

// growTo ensures the bitmap covers at least upToBlock blocks, rounding the
// growth up to a BitBlockGrowth boundary exactly like the original's
// grow_bitmap/ROUND_UP pair.
func (bm *bitmap) growTo(upToBlock int) {
	if upToBlock <= bm.blocks {
		return
	}
	rounded := roundUp(upToBlock, BitBlockGrowth)
	bm.blocks = rounded
}

func roundUp(n, multiple int) int {
	if n%multiple == 0 {
		return n
	}
	return (n/multiple + 1) * multiple
}

func (bm *bitmap) get(block int) bool {
	return bm.bits.Get(uint32(block))
}

func (bm *bitmap) set(block int, val bool) {
	bm.bits.Set(uint32(block), val)
}

// mark sets all blocks covered by [start, start+needed(size)) as allocated,
// growing the bitmap first if necessary (db_mark).
func (bm *bitmap) mark(start, size int) {
	blocks := needed(size)
	bm.growTo(start + blocks)
	for i := start; i < start+blocks; i++ {
		bm.set(i, true)
	}
}

// unmark clears the blocks covered by [start, start+needed(size)) (db_unmark).
// The caller is responsible for setting last_free to start afterwards,
// matching the original's habit of remembering the freed run as the next
// place to look.
func (bm *bitmap) unmark(start, size int) {
	blocks := needed(size)
	for i := start; i < start+blocks; i++ {
		bm.set(i, false)
	}
}

// iterate calls fn for every block index currently marked allocated.
func (bm *bitmap) iterate(fn func(block int)) {
	bm.bits.Iterate(func(i uint32) { fn(int(i)) })
}
