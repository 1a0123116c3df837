package function

import (
	"container/list"

	"github.com/emberdb/ember/internal/ids"
)

// lruList is the optional recency list behind WithLRU: spec.md's C7
// description lists "lru: capacity + recency list" as part of the
// ingredient but treats its policy as out of scope beyond the interface
// (SPEC_FULL.md §4, "Supplemented features"). It evicts the
// least-recently-touched memo once the table exceeds capacity; eviction
// deletes the whole memo (value, revisions and edges), while the id stays
// in argIDs/argKeys, so MaybeChangedAfter and the next Fetch recompute it.
type lruList struct {
	capacity int
	order    *list.List
	elems    map[uint32]*list.Element
}

func newLRUList(capacity int) *lruList {
	return &lruList{capacity: capacity, order: list.New(), elems: make(map[uint32]*list.Element)}
}

// touch marks slot as most-recently-used, returning any slots evicted as a
// result. Callers must hold the owning Ingredient's mu.
func (l *lruList) touch(slot uint32) []uint32 {
	if e, ok := l.elems[slot]; ok {
		l.order.MoveToFront(e)
		return nil
	}
	e := l.order.PushFront(slot)
	l.elems[slot] = e

	var evicted []uint32
	for l.order.Len() > l.capacity {
		back := l.order.Back()
		if back == nil {
			break
		}
		l.order.Remove(back)
		evictedSlot := back.Value.(uint32)
		delete(l.elems, evictedSlot)
		evicted = append(evicted, evictedSlot)
	}
	return evicted
}

// touchLRU records a memo access and evicts the least-recently-used entry
// past capacity, if LRU is enabled. Callers must hold ing.mu.
func (ing *Ingredient[K, V]) touchLRU(id ids.Id) {
	if ing.lru == nil {
		return
	}
	for _, slot := range ing.lru.touch(id.Index()) {
		delete(ing.memos, slot)
	}
}
