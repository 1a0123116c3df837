// Package accumulator implements the accumulate-then-edit mechanism from
// spec.md §6 ("q::accumulated::<A>(db, args) -> Vec<A>"). The core leaves
// accumulators as an out-of-scope external collaborator, but §6 and
// scenario 1 of §8 only make sense if something actually runs them, so this
// package provides the minimal push/walk machinery the original
// implementation's tests/accumulate.rs exercises — grounded in
// original_source/, not in the distilled spec's Non-goals.
package accumulator

import (
	"sync"

	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/localstate"
)

// Accumulator collects values of type A pushed by tracked functions during
// their own execution. Each query's pushes are recorded directly against
// its own DatabaseKeyIndex — never transitively — so accumulated() can
// later reconstruct the full ordered list by walking the dependency tree
// itself.
type Accumulator[A any] struct {
	mu    sync.Mutex
	byKey map[ids.DatabaseKeyIndex][]A
}

// New returns an empty accumulator. A host database typically registers one
// Accumulator value per accumulated type, as a plain field alongside its
// ingredients — accumulators are not themselves engine.Ingredient values.
func New[A any]() *Accumulator[A] {
	return &Accumulator[A]{byKey: make(map[ids.DatabaseKeyIndex][]A)}
}

// Push records value against the currently executing query. Legal only
// while a query is in progress (spec.md §6).
func (a *Accumulator[A]) Push(db *engine.Database, value A) {
	key, _, _, ok := db.Runtime().ActiveQuery()
	if !ok {
		engine.LogicError("accumulator push called outside of an active query")
	}
	a.mu.Lock()
	a.byKey[key] = append(a.byKey[key], value)
	a.mu.Unlock()
}

// Clear drops any values the currently executing query pushed on a prior
// run. A tracked function that pushes to an accumulator must call this once
// at the start of its own execute body — the code-generation front end that
// would normally do this automatically is out of scope (spec.md §1
// Non-goals), so it is the one manual step the host takes on.
func (a *Accumulator[A]) Clear(db *engine.Database) {
	key, _, _, ok := db.Runtime().ActiveQuery()
	if !ok {
		return
	}
	a.mu.Lock()
	delete(a.byKey, key)
	a.mu.Unlock()
}

// Walk reconstructs the accumulated values reachable from root, in
// depth-first, edge-recorded order: root's own pushes first, then each
// Derived Input dependency's subtree in the order root's execution read it
// (spec.md §8 scenario 1's "log_a before log_b" ordering). root must
// already be shallow/deep-verified current — callers fetch it first.
func (a *Accumulator[A]) Walk(db *engine.Database, root ids.DatabaseKeyIndex) []A {
	seen := make(map[ids.DatabaseKeyIndex]bool)
	var out []A
	var visit func(k ids.DatabaseKeyIndex)
	visit = func(k ids.DatabaseKeyIndex) {
		if seen[k] {
			return
		}
		seen[k] = true

		a.mu.Lock()
		out = append(out, a.byKey[k]...)
		a.mu.Unlock()

		origin, ok := db.Registry().Ingredient(k.Ingredient).Origin(k.Key)
		if !ok || origin.Kind != engine.Derived {
			return
		}
		for _, e := range origin.Edges {
			if e.Kind == localstate.Input && e.Dep.HasKey {
				visit(e.Dep.DatabaseKey())
			}
		}
	}
	visit(root)
	return out
}
