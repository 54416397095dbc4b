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

// allocator is the first-fit-from-last_free block allocator, ported
// line-for-line from original_source/genesis/src/db.c's db_alloc/db_mark/
// db_unmark.
type allocator struct {
	bm       *bitmap
	lastFree int
}

func newAllocator(bm *bitmap) *allocator {
	return &allocator{bm: bm}
}

// alloc reserves ceil(size/BlockSize) consecutive free blocks, scanning
// forward from lastFree, wrapping to block 0 once, and growing the bitmap
// on a second pass over the end. Returns the first block of the run.
func (a *allocator) alloc(size int) int {
	blocksNeeded := needed(size)
	b := a.lastFree
	overTheTop := false

	for {
		if b >= a.bm.blocks {
			if !overTheTop {
				b = 0
				overTheTop = true
			} else {
				a.bm.growTo(b + BitBlockGrowth)
			}
		}

		startingBlock := b
		count := 0
		for count < blocksNeeded {
			if a.bm.get(b) {
				break
			}
			b++
			if b >= a.bm.blocks {
				a.bm.growTo(b + BitBlockGrowth)
			}
			count++
		}

		if count == blocksNeeded {
			for i := startingBlock; i < startingBlock+count; i++ {
				a.bm.set(i, true)
			}
			a.lastFree = b
			return startingBlock
		}

		b++
	}
}

// free clears the blocks backing [offset, offset+size) and sets lastFree to
// the start of the freed run, matching db_unmark's "remember a free block
// was here" comment — even though a bigger free run may exist elsewhere,
// spec.md §9 preserves this non-optimal placement behavior on purpose.
func (a *allocator) free(startBlock, size int) {
	a.bm.unmark(startBlock, size)
	a.lastFree = startBlock
}
