// Package interned implements the interned ingredient (C5, spec.md §4.5):
// a concurrent hash-cons table mapping a fields tuple to a stable Id.
package interned

import (
	"fmt"
	"sync"

	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/revision"
)

// Ingredient is a generic interned table keyed by K, the fields tuple.
// K must be comparable so it can hash-cons directly as a Go map key.
type Ingredient[K comparable] struct {
	index ids.IngredientIndex

	mu        sync.Mutex
	forward   map[K]ids.Id
	backward  map[uint32]K
	nextSlot  uint32
	freeSlots []uint32
	deleted   map[uint32]struct{}

	// resetAt is the most recent revision in which any id was deleted; the
	// whole-table dependency read uses it as changed_at (spec.md §4.5).
	resetAt revision.Revision
}

// New registers a fresh interned ingredient on reg.
func New[K comparable](reg *engine.Registry) *Ingredient[K] {
	var ing *Ingredient[K]
	reg.Register(func(idx ids.IngredientIndex) engine.Ingredient {
		ing = &Ingredient[K]{
			index:    idx,
			forward:  make(map[K]ids.Id),
			backward: make(map[uint32]K),
			deleted:  make(map[uint32]struct{}),
		}
		return ing
	})
	return ing
}

// Intern returns the Id for fields, allocating a fresh slot on first use
// and reusing the existing one on every subsequent call with an equal
// fields value. Records a whole-table read dependency on the active query
// so that revalidation picks up on any intervening deletion (spec.md
// §4.5).
func (ing *Ingredient[K]) Intern(db *engine.Database, fields K) ids.Id {
	ing.mu.Lock()
	id, ok := ing.forward[fields]
	if !ok {
		id = ing.allocateLocked(fields)
	}
	resetAt := ing.resetAt
	ing.mu.Unlock()

	dep := ids.ForTable(ing.index)
	db.Runtime().ReportTrackedRead(dep, revision.High, resetAt)
	return id
}

func (ing *Ingredient[K]) allocateLocked(fields K) ids.Id {
	var slot uint32
	if n := len(ing.freeSlots); n > 0 {
		slot = ing.freeSlots[n-1]
		ing.freeSlots = ing.freeSlots[:n-1]
	} else {
		slot = ing.nextSlot
		ing.nextSlot++
	}
	id := ids.IdFromIndex(slot)
	ing.forward[fields] = id
	ing.backward[slot] = fields
	return id
}

// Fields returns the fields tuple an id was interned from. Interned rows
// are immutable for the lifetime of the id, so no read dependency is
// recorded: whatever query obtained the Id already recorded the intern
// edge that vouches for it.
func (ing *Ingredient[K]) Fields(id ids.Id) K {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	fields, ok := ing.backward[id.Index()]
	if !ok {
		engine.LogicError("interned id %s read after deletion", id)
	}
	return fields
}

// DeleteIndex pushes id onto the deferred-free queue; the slot is not
// reused until the next ResetForNewRevision (spec.md §4.5).
func (ing *Ingredient[K]) DeleteIndex(id ids.Id) {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if fields, ok := ing.backward[id.Index()]; ok {
		delete(ing.forward, fields)
		ing.deleted[id.Index()] = struct{}{}
	}
}

// MaybeChangedAfter implements engine.Ingredient. A whole-table dependency
// (as recorded by Intern) changed after `since` iff a deletion has
// happened more recently; an individual row dependency never changes once
// created, since interned fields are immutable for the life of the id.
func (ing *Ingredient[K]) MaybeChangedAfter(db *engine.Database, dep ids.DependencyIndex, since revision.Revision) bool {
	if !dep.HasKey {
		ing.mu.Lock()
		defer ing.mu.Unlock()
		return ing.resetAt > since
	}
	return false
}

// Origin: interned rows are always BaseInput-like from the dependency
// graph's perspective — they cannot be revalidated by replaying edges,
// only by the whole-table reset_at check above.
func (ing *Ingredient[K]) Origin(id ids.Id) (engine.Origin, bool) {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if _, ok := ing.backward[id.Index()]; !ok {
		return engine.Origin{}, false
	}
	return engine.Origin{Kind: engine.BaseInput}, true
}

func (ing *Ingredient[K]) CycleRecoveryStrategy() depgraph.CycleRecoveryStrategy {
	return depgraph.Panic
}

func (ing *Ingredient[K]) MarkValidatedOutput(*engine.Database, ids.DatabaseKeyIndex, ids.DependencyIndex) {
}
func (ing *Ingredient[K]) RemoveStaleOutput(ids.DatabaseKeyIndex, ids.DependencyIndex)   {}
func (ing *Ingredient[K]) SalsaStructDeleted(id ids.Id)                                 { ing.DeleteIndex(id) }

func (ing *Ingredient[K]) ResetOnNewRevision() bool { return true }

// ResetForNewRevision actually frees every slot queued by DeleteIndex,
// recycling it for future Intern calls, and bumps resetAt to current so
// outstanding whole-table dependencies revalidate correctly (spec.md
// §4.5).
func (ing *Ingredient[K]) ResetForNewRevision(current revision.Revision) {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if len(ing.deleted) == 0 {
		return
	}
	for slot := range ing.deleted {
		delete(ing.backward, slot)
		ing.freeSlots = append(ing.freeSlots, slot)
	}
	ing.deleted = make(map[uint32]struct{})
	ing.resetAt = current
}

func (ing *Ingredient[K]) FmtIndex(id ids.Id) string {
	return fmt.Sprintf("interned%s", id)
}
