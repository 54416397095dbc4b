/*
Copyright (C) 2025  Carl-Philip Hänsch

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

package cache

import (
	"sort"
	"time"
)

type softItem struct {
	pointer        any
	size           int64
	priorityFactor int
	cleanup        func(pointer any)
	getLastUsed    func(pointer any) time.Time
	effectiveTime  time.Time
}

// Manager is a soft, memory-budgeted eviction signal layered on top of the
// hard §4.4 active/inactive algorithm: Cache registers each holder's
// approximate in-memory size here, and a budget overrun triggers an extra
// cleanup sweep independent of CACHE_WIDTH/CACHE_DEPTH. Ported from the
// teacher's own CacheManager almost verbatim; the pointer/cleanup/lastUsed
// triple is now keyed by holder.ObjNum instead of an arbitrary shard item.
type Manager struct {
	memoryBudget  int64
	currentMemory int64

	items    []softItem
	indexMap map[any]int

	opChan chan cacheOp
}

type cacheOp struct {
	add  *softItem
	del  any
	done chan struct{}
}

// NewManager creates a Manager with the given soft memory budget in bytes.
func NewManager(memoryBudget int64) *Manager {
	cm := &Manager{
		memoryBudget: memoryBudget,
		items:        make([]softItem, 0),
		indexMap:     make(map[any]int),
		opChan:       make(chan cacheOp, 1024),
	}
	go cm.run()
	return cm
}

// Track registers pointer (typically a holder.ObjNum) with an approximate
// byte size; cleanup is invoked if the budget is exceeded.
func (cm *Manager) Track(pointer any, size int64, priorityFactor int, cleanup func(pointer any), getLastUsed func(pointer any) time.Time) {
	item := &softItem{
		pointer:        pointer,
		size:           size,
		priorityFactor: priorityFactor,
		cleanup:        cleanup,
		getLastUsed:    getLastUsed,
		effectiveTime:  time.Now(),
	}
	done := make(chan struct{})
	cm.opChan <- cacheOp{add: item, done: done}
	<-done
}

// Untrack removes pointer from tracking immediately, without running its
// cleanup (used when the holder is evicted through the regular §4.4 path
// instead of the soft-budget path).
func (cm *Manager) Untrack(pointer any) {
	done := make(chan struct{})
	cm.opChan <- cacheOp{del: pointer, done: done}
	<-done
}

func (cm *Manager) run() {
	for op := range cm.opChan {
		if op.add != nil {
			cm.add(op.add)
		} else if op.del != nil {
			cm.delete(op.del)
		}
		if op.done != nil {
			close(op.done)
		}
	}
}

func (cm *Manager) add(item *softItem) {
	idx := len(cm.items)
	cm.items = append(cm.items, *item)
	cm.indexMap[item.pointer] = idx
	cm.currentMemory += item.size

	if cm.currentMemory > cm.memoryBudget {
		cm.cleanup()
	}
}

func (cm *Manager) delete(pointer any) {
	idx, ok := cm.indexMap[pointer]
	if !ok {
		return
	}
	item := cm.items[idx]
	cm.currentMemory -= item.size

	lastIdx := len(cm.items) - 1
	if idx != lastIdx {
		cm.items[idx] = cm.items[lastIdx]
		cm.indexMap[cm.items[idx].pointer] = idx
	}
	cm.items = cm.items[:lastIdx]
	delete(cm.indexMap, pointer)
}

func (cm *Manager) cleanup() {
	if cm.currentMemory <= cm.memoryBudget {
		return
	}
	targetMemory := cm.memoryBudget * 75 / 100

	for i := range cm.items {
		cm.items[i].effectiveTime = cm.items[i].getLastUsed(cm.items[i].pointer)
	}
	sort.Slice(cm.items, func(i, j int) bool {
		return cm.items[i].effectiveTime.Before(cm.items[j].effectiveTime)
	})

	i := 0
	for cm.currentMemory > targetMemory && i < len(cm.items) {
		item := cm.items[i]
		item.cleanup(item.pointer)
		cm.currentMemory -= item.size
		delete(cm.indexMap, item.pointer)
		i++
	}
	cm.items = cm.items[i:]
	for idx, item := range cm.items {
		cm.indexMap[item.pointer] = idx
	}
}

// CurrentMemory reports the sum of tracked item sizes, for diagnostics.
func (cm *Manager) CurrentMemory() int64 {
	done := make(chan struct{})
	var result int64
	cm.opChan <- cacheOp{done: done}
	// the query itself carries no add/del, so run() just closes done; read
	// currentMemory only after the channel round-trip guarantees no op is
	// in flight ahead of us.
	<-done
	result = cm.currentMemory
	return result
}
