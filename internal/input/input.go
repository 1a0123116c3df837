// Package input implements the input ingredient (C4, spec.md §4.4):
// per-row (durability, changed_at, fields) storage whose only origin is an
// explicit Set from the embedder.
package input

import (
	"fmt"
	"sync"

	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/revision"
)

type row[V any] struct {
	value      V
	set        bool
	durability revision.Durability
	changedAt  revision.Revision
}

// Ingredient is a generic input table: V is the row's field value type. A
// host database with several input structs, or several fields per struct,
// registers one Ingredient per field.
type Ingredient[V any] struct {
	index ids.IngredientIndex
	mu    sync.RWMutex
	rows  map[uint32]*row[V]
}

// New registers a fresh input ingredient on reg.
func New[V any](reg *engine.Registry) *Ingredient[V] {
	var ing *Ingredient[V]
	reg.Register(func(idx ids.IngredientIndex) engine.Ingredient {
		ing = &Ingredient[V]{index: idx, rows: make(map[uint32]*row[V])}
		return ing
	})
	return ing
}

// Set stores value into the row addressed by id and records a write at the
// given durability in the current revision. It does not advance the
// revision: the writer calls db.NewRevision before Set when the write
// belongs to a new revision. Must be called only on a writer Runtime.
func (ing *Ingredient[V]) Set(db *engine.Database, id ids.Id, value V, durability revision.Durability) {
	db.Runtime().ReportTrackedWrite(durability)
	current := db.Runtime().CurrentRevision()

	ing.mu.Lock()
	ing.rows[id.Index()] = &row[V]{value: value, set: true, durability: durability, changedAt: current}
	ing.mu.Unlock()
}

// Get reads the field, recording a tracked read dependency on the active
// query, if any. Panics with engine.ErrNotSet wrapped in a logic error if
// the row has never been set (spec.md §4.4: "Fails with NotSet").
func (ing *Ingredient[V]) Get(db *engine.Database, id ids.Id) V {
	ing.mu.RLock()
	r, ok := ing.rows[id.Index()]
	ing.mu.RUnlock()
	if !ok {
		panic(fmt.Errorf("ember: input %s: %w", id, engine.ErrNotSet))
	}

	dep := ids.ForKey(ing.index, id)
	db.Runtime().ReportTrackedRead(dep, r.durability, r.changedAt)
	return r.value
}

// MaybeChangedAfter implements engine.Ingredient: an input row changed
// after `since` iff it was (re)set in a later revision (spec.md §4.4:
// "returns row.changed_at > R").
func (ing *Ingredient[V]) MaybeChangedAfter(db *engine.Database, dep ids.DependencyIndex, since revision.Revision) bool {
	ing.mu.RLock()
	defer ing.mu.RUnlock()
	r, ok := ing.rows[dep.Key.Index()]
	if !ok {
		return false
	}
	return r.changedAt > since
}

// Origin always reports BaseInput for a set row.
func (ing *Ingredient[V]) Origin(id ids.Id) (engine.Origin, bool) {
	ing.mu.RLock()
	defer ing.mu.RUnlock()
	if _, ok := ing.rows[id.Index()]; !ok {
		return engine.Origin{}, false
	}
	return engine.Origin{Kind: engine.BaseInput}, true
}

// CycleRecoveryStrategy: input rows never participate in a cycle.
func (ing *Ingredient[V]) CycleRecoveryStrategy() depgraph.CycleRecoveryStrategy {
	return depgraph.Panic
}

// MarkValidatedOutput, RemoveStaleOutput, SalsaStructDeleted: inputs are
// never tracked-struct outputs, so these are no-ops.
func (ing *Ingredient[V]) MarkValidatedOutput(*engine.Database, ids.DatabaseKeyIndex, ids.DependencyIndex) {
}
func (ing *Ingredient[V]) RemoveStaleOutput(ids.DatabaseKeyIndex, ids.DependencyIndex)   {}
func (ing *Ingredient[V]) SalsaStructDeleted(ids.Id)                                    {}

// ResetOnNewRevision: input rows have nothing to drain between revisions.
func (ing *Ingredient[V]) ResetOnNewRevision() bool                   { return false }
func (ing *Ingredient[V]) ResetForNewRevision(revision.Revision)      {}

// FmtIndex renders an input row id for diagnostics.
func (ing *Ingredient[V]) FmtIndex(id ids.Id) string {
	return fmt.Sprintf("input%s", id)
}
