package function

import (
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/localstate"
)

// executeResult is a freshly computed memo candidate, not yet compared
// against any prior memo for backdating or finalized into the memo map.
type executeResult[V any] struct {
	value  V
	origin engine.Origin
	m      *memo[V]
}

// runExecute implements spec.md §4.7.4's frame bookkeeping: push a fresh
// active-query frame, invoke the user function, and fold the frame's
// edges into a candidate memo. Backdating, stale-output cleanup, and
// storage are the caller's job (doExecute), since the fixpoint loop in
// cycle.go may call this repeatedly before settling.
func (ing *Ingredient[K, V]) runExecute(db *engine.Database, key K, id ids.Id, dbKey ids.DatabaseKeyIndex) *executeResult[V] {
	db.Emit(engine.Event{Kind: engine.WillExecute, Key: dbKey})

	guard := db.Runtime().PushQuery(dbKey)
	value := ing.execute(db, key)
	frame := guard.Pop()

	origin := engine.Origin{Kind: engine.Derived, Edges: frame.Edges}
	if frame.UntrackedRead {
		origin.Kind = engine.DerivedUntracked
	}

	durability := frame.MinDurability
	if ing.durability < durability {
		durability = ing.durability
	}

	m := &memo[V]{
		value:      value,
		origin:     origin,
		durability: durability,
		changedAt:  frame.MaxChangedAt,
		verifiedAt: db.Runtime().CurrentRevision(),
	}
	return &executeResult[V]{value: value, origin: origin, m: m}
}

// diffStaleOutputs computes (prior_outputs ∖ new_outputs) and routes each
// to RemoveStaleOutput on its owning ingredient (spec.md §4.7.4).
func (ing *Ingredient[K, V]) diffStaleOutputs(db *engine.Database, dbKey ids.DatabaseKeyIndex, prior, fresh *memo[V]) {
	if prior == nil {
		return
	}
	freshOutputs := make(map[ids.DependencyIndex]struct{})
	for _, e := range fresh.origin.Edges {
		if e.Kind == localstate.Output {
			freshOutputs[e.Dep] = struct{}{}
		}
	}
	for _, e := range prior.origin.Edges {
		if e.Kind != localstate.Output {
			continue
		}
		if _, stillPresent := freshOutputs[e.Dep]; stillPresent {
			continue
		}
		db.Emit(engine.Event{Kind: engine.WillDiscardStaleOutput, Key: dbKey})
		db.Registry().Ingredient(e.Dep.Ingredient).RemoveStaleOutput(dbKey, e.Dep)
		db.Emit(engine.Event{Kind: engine.DidDiscard, Key: dbKey})
	}
}

// storeMemo installs m as the memo for id, replacing any prior memo in the
// table, and records the access with the LRU list when LRU is enabled.
func (ing *Ingredient[K, V]) storeMemo(id ids.Id, m *memo[V]) {
	ing.mu.Lock()
	ing.memos[id.Index()] = m
	ing.touchLRU(id)
	ing.mu.Unlock()
}
