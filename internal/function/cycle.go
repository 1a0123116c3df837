package function

import (
	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/localstate"
	"github.com/emberdb/ember/internal/revision"
)

func (ing *Ingredient[K, V]) isCycleHead(m *memo[V], dbKey ids.DatabaseKeyIndex) bool {
	if m == nil {
		return false
	}
	_, ok := m.cycleHeads[dbKey]
	return ok
}

// handleReentrant is reached when Fetch discovers that the calling
// goroutine already holds the claim for id — a same-thread cycle closing
// back on itself, directly or through a chain of other same-thread calls
// (spec.md §4.7.7). It never blocks: blocking here would deadlock, since
// nobody else will ever release a claim this same goroutine holds.
func (ing *Ingredient[K, V]) handleReentrant(db *engine.Database, key K, id ids.Id, dbKey ids.DatabaseKeyIndex) V {
	ing.mu.Lock()
	if m, ok := ing.memos[id.Index()]; ok && m.provisional() {
		value, durability, changedAt := m.value, m.durability, m.changedAt
		ing.mu.Unlock()
		db.Runtime().ReportTrackedRead(ids.ForKey(ing.index, id), durability, changedAt)
		return value
	}
	ing.mu.Unlock()

	return ing.seedProvisional(db, key, id, dbKey, []ids.DatabaseKeyIndex{dbKey})
}

// handleCycleDetected is reached when a cross-thread BlockOn call
// resolved a cycle reaching back to this runtime instead of parking it
// (spec.md §4.9): the dependency graph has already marked every
// Fallback-capable participant's active-query frame, but this ingredient
// may be encountering dbKey for the first time on this goroutine and must
// seed its own provisional memo the same way a same-thread reentry would.
func (ing *Ingredient[K, V]) handleCycleDetected(db *engine.Database, key K, id ids.Id, dbKey ids.DatabaseKeyIndex, cyc *localstate.Cycle) V {
	ing.mu.Lock()
	if m, ok := ing.memos[id.Index()]; ok && m.provisional() {
		value, durability, changedAt := m.value, m.durability, m.changedAt
		ing.mu.Unlock()
		db.Runtime().ReportTrackedRead(ids.ForKey(ing.index, id), durability, changedAt)
		return value
	}
	ing.mu.Unlock()

	participants := []ids.DatabaseKeyIndex{dbKey}
	if cyc != nil {
		participants = cyc.Participants
	}
	return ing.seedProvisional(db, key, id, dbKey, participants)
}

func (ing *Ingredient[K, V]) seedProvisional(db *engine.Database, key K, id ids.Id, dbKey ids.DatabaseKeyIndex, participants []ids.DatabaseKeyIndex) V {
	if ing.strategyOf() != depgraph.Fallback || ing.cycle.Initial == nil {
		panic(&depgraph.CyclePanic{Cycle: &localstate.Cycle{Participants: participants}})
	}

	db.Emit(engine.Event{Kind: engine.WillIterateCycle, Key: dbKey})
	initial := ing.cycle.Initial(key)
	current := db.Runtime().CurrentRevision()
	heads := make(map[ids.DatabaseKeyIndex]struct{}, len(participants))
	for _, p := range participants {
		heads[p] = struct{}{}
	}
	m := &memo[V]{
		value:      initial,
		origin:     engine.Origin{Kind: engine.Derived},
		durability: revision.High,
		changedAt:  current,
		verifiedAt: current,
		cycleHeads: heads,
	}

	ing.mu.Lock()
	ing.memos[id.Index()] = m
	ing.mu.Unlock()

	db.Runtime().ReportTrackedRead(ids.ForKey(ing.index, id), m.durability, m.changedAt)
	return initial
}

// doExecute runs the user function, then — if a nested reentry seeded a
// provisional memo naming this key as a cycle head during that run —
// drives the fixpoint loop of spec.md §4.7.7 to convergence or a
// user-chosen fallback before storing the final memo. On the common,
// non-cyclic path the loop body runs exactly once.
func (ing *Ingredient[K, V]) doExecute(db *engine.Database, key K, id ids.Id, dbKey ids.DatabaseKeyIndex) V {
	ing.mu.RLock()
	prior := ing.memos[id.Index()]
	ing.mu.RUnlock()

	for {
		result := ing.runExecute(db, key, id, dbKey)

		ing.mu.RLock()
		seeded := ing.memos[id.Index()]
		ing.mu.RUnlock()

		if !ing.isCycleHead(seeded, dbKey) {
			if prior != nil && ing.valueEqual(prior.value, result.value) {
				result.m.changedAt = prior.changedAt
				result.m.durability = prior.durability
				result.m.value = prior.value
			}
			ing.diffStaleOutputs(db, dbKey, prior, result.m)
			ing.storeMemo(id, result.m)
			return result.m.value
		}

		if ing.valueEqual(seeded.value, result.value) {
			result.m.cycleHeads = nil
			result.m.iterationCount = seeded.iterationCount
			ing.diffStaleOutputs(db, dbKey, prior, result.m)
			ing.storeMemo(id, result.m)
			return result.m.value
		}

		if ing.cycle.Iterate == nil {
			result.m.cycleHeads = nil
			ing.diffStaleOutputs(db, dbKey, prior, result.m)
			ing.storeMemo(id, result.m)
			return result.m.value
		}

		iterate, fallback := ing.cycle.Iterate(seeded.value, result.value, seeded.iterationCount+1)
		if iterate {
			result.m.cycleHeads = seeded.cycleHeads
			result.m.iterationCount = seeded.iterationCount + 1
			ing.storeMemo(id, result.m)
			continue
		}

		result.m.value = fallback
		result.m.cycleHeads = nil
		ing.diffStaleOutputs(db, dbKey, prior, result.m)
		ing.storeMemo(id, result.m)
		return result.m.value
	}
}
