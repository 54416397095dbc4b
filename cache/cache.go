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

// Package cache implements the hashed active/inactive holder chains of
// spec.md §4.4, ported line-for-line from
// original_source/genesis/src/cache.c's cache_get_holder/cache_retrieve/
// cache_grab/cache_discard/cache_cleanup family, generalized over a
// blockstore.Store-shaped backing store.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/jtolds/gls"

	"github.com/coldrun/objectstore/holder"
)

// Store is the subset of blockstore.Store the cache needs: read/write/
// delete/existence-check by object number, plus durable iteration.
type Store interface {
	Get(objnum int) ([]byte, bool, error)
	Put(objnum int, payload []byte) error
	Check(objnum int) bool
	Del(objnum int) error
	Sync() error
	First() (objnum int, ok bool)
	Next(objnum int) (next int, ok bool)
}

// DefaultForcedCleanupLimit/DefaultForcedCleanupBound are cache.c's flood-control
// constants: once load_count (misses since the last cleanup) exceeds the
// limit, cleanup treats the aging threshold as the bound instead of zero,
// evicting more aggressively.
const (
	DefaultForcedCleanupLimit = 50
	DefaultForcedCleanupBound = 5
)

// Cache is the hashed, width-bucketed active/inactive holder cache.
type Cache struct {
	arena  *holder.Arena
	width  int
	active []int32 // sentinel index per bucket
	inactive []int32

	store Store

	loadCount          int
	forcedCleanupLimit int
	forcedCleanupBound int

	// manager, lastAccess and pendingEvict implement the soft memory-budget
	// enrichment. Manager.cleanup runs on its own goroutine (see
	// cache/manager.go), so it must never touch the arena directly — doing
	// so would violate the single-threaded-cooperative contract the owner
	// assertion exists to enforce. Its cleanup callback instead only marks
	// an object number in pendingEvict (sync.Map, safe for concurrent use);
	// Cleanup(), running on the owner goroutine, drains it on its next
	// pass. lastAccess is likewise a sync.Map so Manager's goroutine can
	// read last-use times the owner goroutine writes without a data race.
	manager      *Manager
	lastAccess   sync.Map // holder.ObjNum -> int64 (UnixNano)
	pendingEvict sync.Map // holder.ObjNum -> struct{}

	ownerGoroutine uint
	ownerSet       bool
}

// New builds a cache with width buckets, each inactive chain preloaded with
// depth empty holders (init_cache).
func New(store Store, width, depth int) *Cache {
	c := &Cache{
		arena:              holder.NewArena(),
		width:              width,
		active:             make([]int32, width),
		inactive:           make([]int32, width),
		store:              store,
		forcedCleanupLimit: DefaultForcedCleanupLimit,
		forcedCleanupBound: DefaultForcedCleanupBound,
	}
	for i := 0; i < width; i++ {
		c.active[i] = c.arena.NewSentinel()
		c.inactive[i] = c.arena.NewSentinel()
		for j := 0; j < depth; j++ {
			h := c.arena.NewHolder()
			c.arena.LinkTail(c.inactive[i], h)
		}
	}
	c.bindOwner()
	return c
}

// SetManager attaches a soft memory-budget Manager; nil disables it.
func (c *Cache) SetManager(m *Manager) { c.manager = m }

func (c *Cache) bindOwner() {
	gls.EnsureGoroutineId(func(gid uint) {
		c.ownerGoroutine = gid
		c.ownerSet = true
	})
}

// assertOwner operationalizes spec.md §5's single-threaded-cooperative
// contract: every Cache method is expected to run on the goroutine that
// constructed it.
func (c *Cache) assertOwner() {
	gls.EnsureGoroutineId(func(gid uint) {
		if c.ownerSet && gid != c.ownerGoroutine {
			panic(fmt.Sprintf("cache: accessed from goroutine %d, but owned by goroutine %d (single-threaded cooperative contract violated)", gid, c.ownerGoroutine))
		}
	})
}

func (c *Cache) touch(n holder.ObjNum) {
	c.lastAccess.Store(n, time.Now().UnixNano())
}

// trackIfManaged registers n's approximate size with the soft-budget
// Manager, if one is attached. The cleanup callback only flags n in
// pendingEvict; Cleanup() is what actually reclaims the body.
func (c *Cache) trackIfManaged(n holder.ObjNum, size int64) {
	if c.manager == nil {
		return
	}
	c.touch(n)
	c.manager.Track(n, size, 0,
		func(p any) { c.pendingEvict.Store(p, struct{}{}) },
		func(p any) time.Time {
			if v, ok := c.lastAccess.Load(p); ok {
				return time.Unix(0, v.(int64))
			}
			return time.Time{}
		})
}

func (c *Cache) bucket(n holder.ObjNum) int {
	m := int(n) % c.width
	if m < 0 {
		m += c.width
	}
	return m
}

func (c *Cache) writeBack(idx int32) {
	h := c.arena.At(idx)
	if h.ObjNum == holder.None || !h.Dirty {
		return
	}
	if err := c.store.Put(int(h.ObjNum), h.Body); err != nil {
		panic(fmt.Sprintf("cache: could not store object %d: %v", h.ObjNum, err))
	}
	h.Dirty = false
}

// GetHolder implements cache_get_holder: obtain a ready holder for n,
// recycling the tail of its bucket's inactive chain (writing it back first
// if dirty) or allocating fresh, and link it at the head of the active
// chain.
func (c *Cache) GetHolder(n holder.ObjNum) int32 {
	c.assertOwner()
	b := c.bucket(n)

	var idx int32
	if tail, ok := c.arena.Tail(c.inactive[b]); ok {
		h := c.arena.At(tail)
		if h.ObjNum != holder.None {
			c.writeBack(tail)
			if c.manager != nil {
				c.manager.Untrack(h.ObjNum)
			}
		}
		c.arena.Unlink(tail)
		idx = tail
		*c.arena.At(idx) = holder.Holder{ObjNum: holder.None}
	} else {
		idx = c.arena.NewHolder()
	}

	c.arena.LinkHead(c.active[b], idx)
	h := c.arena.At(idx)
	h.Dirty = false
	h.Dead = false
	h.Refs = 1
	h.U += 10
	h.AttachedConnection = ""
	h.AttachedFile = ""
	h.ObjNum = n
	return idx
}

// Retrieve implements cache_retrieve: active-chain hit, inactive-chain
// rescue, or a full store read through a freshly obtained holder.
func (c *Cache) Retrieve(n holder.ObjNum) (int32, bool) {
	c.assertOwner()
	if n < 0 {
		return 0, false
	}
	b := c.bucket(n)

	found := int32(-1)
	c.arena.ForEach(c.active[b], func(idx int32, h *holder.Holder) {
		if found == -1 && h.ObjNum == n {
			found = idx
		}
	})
	if found != -1 {
		h := c.arena.At(found)
		h.Refs++
		h.U += 10
		c.touch(n)
		return found, true
	}

	c.arena.ForEach(c.inactive[b], func(idx int32, h *holder.Holder) {
		if found == -1 && h.ObjNum == n {
			found = idx
		}
	})
	if found != -1 {
		c.arena.Unlink(found)
		c.arena.LinkHead(c.active[b], found)
		h := c.arena.At(found)
		h.Refs = 1
		h.U += 10
		c.touch(n)
		return found, true
	}

	idx := c.GetHolder(n)
	c.loadCount++
	payload, ok, err := c.store.Get(int(n))
	if err != nil {
		panic(fmt.Sprintf("cache: reading object %d: %v", n, err))
	}
	if !ok {
		h := c.arena.At(idx)
		h.ObjNum = holder.None
		c.arena.Unlink(idx)
		c.arena.LinkTail(c.inactive[b], idx)
		return 0, false
	}
	c.arena.At(idx).Body = payload
	c.trackIfManaged(n, int64(len(payload)))
	return idx, true
}

// Grab implements cache_grab: bump refs and aging on an already-held index.
func (c *Cache) Grab(idx int32) {
	c.assertOwner()
	h := c.arena.At(idx)
	h.Refs++
	h.U += 10
	c.touch(h.ObjNum)
}

// Discard implements cache_discard: drop a reference, and once it reaches
// zero, retire the holder from the active chain — deleting it for real if
// marked dead, otherwise parking it at the head of the inactive chain so
// its body can be rescued by a subsequent Retrieve.
func (c *Cache) Discard(idx int32) {
	c.assertOwner()
	h := c.arena.At(idx)
	h.Refs--
	if h.Refs > 0 {
		return
	}
	b := c.bucket(h.ObjNum)
	c.arena.Unlink(idx)

	if h.Dead {
		// an object that only ever lived in the cache has nothing on disk to delete
		if c.store.Check(int(h.ObjNum)) {
			if err := c.store.Del(int(h.ObjNum)); err != nil {
				panic(fmt.Sprintf("cache: could not delete object %d: %v", h.ObjNum, err))
			}
		}
		if c.manager != nil {
			c.manager.Untrack(h.ObjNum)
		}
		h.Body = nil
		h.ObjNum = holder.None
		c.arena.LinkTail(c.inactive[b], idx)
	} else {
		c.arena.LinkHead(c.inactive[b], idx)
	}
}

// Check implements cache_check: search both chains, falling back to the
// store's own existence check on a full miss.
func (c *Cache) Check(n holder.ObjNum) bool {
	c.assertOwner()
	if n < 0 {
		return false
	}
	b := c.bucket(n)
	hit := false
	c.arena.ForEach(c.active[b], func(idx int32, h *holder.Holder) {
		if h.ObjNum == n {
			hit = true
		}
	})
	if hit {
		return true
	}
	c.arena.ForEach(c.inactive[b], func(idx int32, h *holder.Holder) {
		if h.ObjNum == n {
			hit = true
		}
	})
	if hit {
		return true
	}
	return c.store.Check(int(n))
}

// Sync implements cache_sync: write back every dirty holder in every chain,
// then flush the store. This is the phase-transition point where the
// caller may subsequently mark the clean marker.
func (c *Cache) Sync() error {
	c.assertOwner()
	for b := 0; b < c.width; b++ {
		c.arena.ForEach(c.active[b], func(idx int32, h *holder.Holder) { c.writeBack(idx) })
		c.arena.ForEach(c.inactive[b], func(idx int32, h *holder.Holder) { c.writeBack(idx) })
	}
	return c.store.Sync()
}

// First/Next implement cache_first/cache_next: driven by the store's
// iteration primitives, each yielded object number is retrieved through the
// regular Retrieve path. First implies a prior full Sync.
func (c *Cache) First() (int32, bool) {
	c.assertOwner()
	if err := c.Sync(); err != nil {
		panic(fmt.Sprintf("cache: sync before First: %v", err))
	}
	n, ok := c.store.First()
	if !ok {
		return 0, false
	}
	return c.Retrieve(holder.ObjNum(n))
}

func (c *Cache) Next(n holder.ObjNum) (int32, bool) {
	c.assertOwner()
	next, ok := c.store.Next(int(n))
	if !ok {
		return 0, false
	}
	return c.Retrieve(holder.ObjNum(next))
}

// Cleanup implements cache_cleanup: halve every inactive holder's aging
// counter; any that fall at or below the (possibly flood-adjusted) bound
// are written back if dirty and have their body discarded, leaving a reusable
// empty shell in place on the inactive chain.
func (c *Cache) Cleanup() {
	c.assertOwner()
	bound := 0
	if c.loadCount > c.forcedCleanupLimit {
		bound = c.forcedCleanupBound
	}
	c.loadCount = 0

	evicted := 0
	for b := 0; b < c.width; b++ {
		c.arena.ForEach(c.inactive[b], func(idx int32, h *holder.Holder) {
			h.U >>= 1
			if h.U > int32(bound) {
				return
			}
			if h.Dirty {
				c.writeBack(idx)
			}
			if h.ObjNum != holder.None {
				if c.manager != nil {
					c.manager.Untrack(h.ObjNum)
				}
				h.Body = nil
				h.ObjNum = holder.None
				evicted++
			}
		})
	}

	// drain anything the Manager's own goroutine flagged for eviction since
	// the last pass (see the comment on pendingEvict).
	c.pendingEvict.Range(func(key, _ any) bool {
		n := key.(holder.ObjNum)
		c.pendingEvict.Delete(n)
		b := c.bucket(n)
		c.arena.ForEach(c.inactive[b], func(idx int32, h *holder.Holder) {
			if h.ObjNum != n {
				return
			}
			if h.Dirty {
				c.writeBack(idx)
			}
			h.Body = nil
			h.ObjNum = holder.None
			evicted++
		})
		return true
	})

	if c.manager != nil && evicted > 0 {
		fmt.Println(FormatStats(Stats{BucketsSwept: c.width, Evicted: evicted, Budget: c.manager.memoryBudget, InUse: c.manager.CurrentMemory()}))
	}
}

// SanityCheck implements cache_sanity_check: asserts every active chain is
// empty. Intended for invocation at safe points (e.g. between top-level
// interpreter turns), never mid-operation.
func (c *Cache) SanityCheck() {
	c.assertOwner()
	for b := 0; b < c.width; b++ {
		if !c.arena.Empty(c.active[b]) {
			panic(fmt.Sprintf("cache: active objects present in bucket %d at a supposed safe point", b))
		}
	}
}

// Holder exposes the arena cell at idx for callers that need to read or
// mutate a retrieved object's body (e.g. marking it dirty after a write).
func (c *Cache) Holder(idx int32) *holder.Holder { return c.arena.At(idx) }
