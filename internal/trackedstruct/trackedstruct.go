// Package trackedstruct implements the tracked-struct ingredient (C6,
// spec.md §4.6): entities whose identity is scoped to the active query
// that creates them, so that re-executing the same query deterministically
// reproduces the same ids for structurally-equal creations.
package trackedstruct

import (
	"fmt"
	"sync"

	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/revision"
)

// IdentityHash hashes the identity subset of a fields value — the part
// that determines whether two creations within the same query refer to
// "the same" entity (spec.md §4.6 step 1).
type IdentityHash[F any] func(fields F) uint64

// Equal compares two fields values for the backdating decision (spec.md
// §4.6 step 3, §4.7.4).
type Equal[F any] func(a, b F) bool

type slotKey struct {
	Creator       ids.DatabaseKeyIndex
	Hash          uint64
	Disambiguator uint32
}

type slot[F any] struct {
	id         ids.Id
	fields     F
	createdAt  revision.Revision
	changedAt  revision.Revision
	durability revision.Durability
}

// Ingredient is a generic tracked-struct table. F is the full fields
// value a creation carries; identity and equality are supplied by the
// caller since Go cannot derive them from an arbitrary struct without
// reflection or the code-generation front end spec.md places out of
// scope.
//
// Simplification (recorded in DESIGN.md): real salsa tracks a separate
// revision per field, so that updating one non-identity field does not
// invalidate readers of an untouched field. Without generated per-field
// accessors, this ingredient tracks one aggregate (durability, changed_at)
// per row and backdates the whole row when Equal reports no change.
type Ingredient[F any] struct {
	index ids.IngredientIndex
	hash  IdentityHash[F]
	equal Equal[F]

	mu        sync.Mutex
	slots     map[slotKey]*slot[F]
	byID      map[uint32]*slot[F]
	nextSlot  uint32
	freeSlots []uint32
	deleted   map[uint32]struct{}

	dependents []engine.Ingredient
}

// New registers a fresh tracked-struct ingredient on reg.
func New[F any](reg *engine.Registry, hash IdentityHash[F], equal Equal[F]) *Ingredient[F] {
	var ing *Ingredient[F]
	reg.Register(func(idx ids.IngredientIndex) engine.Ingredient {
		ing = &Ingredient[F]{
			index:   idx,
			hash:    hash,
			equal:   equal,
			slots:   make(map[slotKey]*slot[F]),
			byID:    make(map[uint32]*slot[F]),
			deleted: make(map[uint32]struct{}),
		}
		return ing
	})
	return ing
}

// Subscribe registers a function ingredient keyed on this struct's ids so
// that deleting an entity notifies it to drop any memo for that id
// (spec.md §4.6, "Each dependent function ... is notified").
func (ing *Ingredient[F]) Subscribe(dependent engine.Ingredient) {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	ing.dependents = append(ing.dependents, dependent)
}

// New allocates or reuses an entity for fields, only legal while a query
// is executing (spec.md §4.6). Must be called with db.Runtime() having an
// active query — the creator of the struct.
func (ing *Ingredient[F]) New(db *engine.Database, fields F, durability revision.Durability) ids.Id {
	creator, _, _, ok := db.Runtime().ActiveQuery()
	if !ok {
		engine.LogicError("tracked struct created outside of an active query")
	}
	hash := ing.hash(fields)
	disambiguator, _, _ := db.Runtime().DisambiguateEntity(hash)
	key := slotKey{Creator: creator, Hash: hash, Disambiguator: disambiguator}
	current := db.Runtime().CurrentRevision()

	ing.mu.Lock()
	s, existed := ing.slots[key]
	if !existed {
		s = &slot[F]{id: ing.allocateLocked(), fields: fields, createdAt: current, changedAt: current, durability: durability}
		ing.slots[key] = s
		ing.byID[s.id.Index()] = s
	} else if !ing.equal(s.fields, fields) {
		s.fields = fields
		s.changedAt = current
		s.durability = durability
	} else {
		s.durability = durability
	}
	id := s.id
	ing.mu.Unlock()

	db.Runtime().AddOutput(ids.ForKey(ing.index, id))
	return id
}

func (ing *Ingredient[F]) allocateLocked() ids.Id {
	var slotIdx uint32
	if n := len(ing.freeSlots); n > 0 {
		slotIdx = ing.freeSlots[n-1]
		ing.freeSlots = ing.freeSlots[:n-1]
	} else {
		slotIdx = ing.nextSlot
		ing.nextSlot++
	}
	return ids.IdFromIndex(slotIdx)
}

// Field returns the fields value for id, recording a read edge stamped
// with the row's aggregate durability and changed_at (spec.md §4.6 "Field
// access").
func (ing *Ingredient[F]) Field(db *engine.Database, id ids.Id) F {
	ing.mu.Lock()
	s, ok := ing.byID[id.Index()]
	ing.mu.Unlock()
	if !ok {
		engine.LogicError("tracked struct %s read after deletion", id)
	}
	db.Runtime().ReportTrackedRead(ids.ForKey(ing.index, id), s.durability, s.changedAt)
	return s.fields
}

// MaybeChangedAfter implements engine.Ingredient.
func (ing *Ingredient[F]) MaybeChangedAfter(db *engine.Database, dep ids.DependencyIndex, since revision.Revision) bool {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	s, ok := ing.byID[dep.Key.Index()]
	if !ok {
		return true // deleted rows are conservatively "changed"
	}
	return s.changedAt > since
}

// Origin reports BaseInput: tracked-struct rows are recreated directly by
// their creator's execution, not revalidated by replaying edges of their
// own.
func (ing *Ingredient[F]) Origin(id ids.Id) (engine.Origin, bool) {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if _, ok := ing.byID[id.Index()]; !ok {
		return engine.Origin{}, false
	}
	return engine.Origin{Kind: engine.BaseInput}, true
}

func (ing *Ingredient[F]) CycleRecoveryStrategy() depgraph.CycleRecoveryStrategy {
	return depgraph.Panic
}

// MarkValidatedOutput is a no-op here: a tracked-struct row always
// reflects its creator's latest execution directly (there is no separate
// verified_at window to advance, unlike a function memo).
func (ing *Ingredient[F]) MarkValidatedOutput(*engine.Database, ids.DatabaseKeyIndex, ids.DependencyIndex) {
}

// RemoveStaleOutput deletes the entity addressed by stale and notifies
// every subscribed dependent function to drop its memo for it (spec.md
// §4.6 deletion).
func (ing *Ingredient[F]) RemoveStaleOutput(executor ids.DatabaseKeyIndex, stale ids.DependencyIndex) {
	ing.SalsaStructDeleted(stale.Key)
}

// SalsaStructDeleted pushes id onto the deferred-free queue and fans the
// notification out to every subscribed function ingredient.
func (ing *Ingredient[F]) SalsaStructDeleted(id ids.Id) {
	ing.mu.Lock()
	if _, ok := ing.byID[id.Index()]; ok {
		ing.deleted[id.Index()] = struct{}{}
	}
	dependents := make([]engine.Ingredient, len(ing.dependents))
	copy(dependents, ing.dependents)
	ing.mu.Unlock()

	for _, dep := range dependents {
		dep.SalsaStructDeleted(id)
	}
}

func (ing *Ingredient[F]) ResetOnNewRevision() bool { return true }

// ResetForNewRevision frees every slot queued by SalsaStructDeleted,
// recycling it for future New calls (spec.md §4.6, §9 "Lifetimes of
// returned references": displaced rows stay valid until the writer holds
// exclusivity again).
func (ing *Ingredient[F]) ResetForNewRevision(revision.Revision) {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	for slotIdx := range ing.deleted {
		if s, ok := ing.byID[slotIdx]; ok {
			for key, candidate := range ing.slots {
				if candidate == s {
					delete(ing.slots, key)
					break
				}
			}
		}
		delete(ing.byID, slotIdx)
		ing.freeSlots = append(ing.freeSlots, slotIdx)
	}
	ing.deleted = make(map[uint32]struct{})
}

func (ing *Ingredient[F]) FmtIndex(id ids.Id) string {
	return fmt.Sprintf("tracked%s", id)
}
