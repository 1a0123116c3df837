package function

import (
	"fmt"

	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
)

// Fetch implements spec.md §4.7.1: the only entry point a generated
// accessor calls. It loops between shallow-verify and claiming until it
// either returns a verified value or becomes the executor.
func (ing *Ingredient[K, V]) Fetch(db *engine.Database, key K) V {
	db.Runtime().UnwindIfCancelled()
	id := ing.idFor(key)
	return ing.fetchInternal(db, key, id)
}

func (ing *Ingredient[K, V]) fetchInternal(db *engine.Database, key K, id ids.Id) V {
	dbKey := ing.dbKey(id)
	self := db.Runtime().Id()

	for {
		if v, ok := ing.shallowVerify(db, id); ok {
			return v
		}

		owner, claimed := ing.tryClaim(self, id)
		if !claimed {
			if owner == self {
				return ing.handleReentrant(db, key, id, dbKey)
			}
			db.Emit(engine.Event{Kind: engine.WillBlockOn, Key: dbKey})
			result := db.Runtime().BlockOnOrUnwind(dbKey, owner, func(i ids.IngredientIndex) depgraph.CycleRecoveryStrategy {
				return db.Registry().CycleRecoveryStrategy(i)
			})
			switch result.Kind {
			case depgraph.Completed:
				continue
			case depgraph.Panicked:
				panic(fmt.Errorf("ember: %s: execution panicked on another thread", dbKey))
			case depgraph.CycleDetected:
				return ing.handleCycleDetected(db, key, id, dbKey, result.Cycle)
			}
			continue
		}

		value := ing.fetchWithClaim(db, key, id, dbKey)
		ing.reportRead(db, id)
		return value
	}
}

// reportRead records the Input edge from whatever query is calling Fetch to
// this ingredient's row, using the memo's just-stored durability/changed_at.
// shallowVerify's fast path reports this itself; fetchWithClaim's cold path
// (deep-verify or fresh execution) does not, since by the time it returns
// the memo has already settled and the caller's frame is back on top of the
// stack — so the report belongs here, not inside deepVerify/doExecute.
func (ing *Ingredient[K, V]) reportRead(db *engine.Database, id ids.Id) {
	ing.mu.RLock()
	m, ok := ing.memos[id.Index()]
	ing.mu.RUnlock()
	if !ok {
		return
	}
	db.Runtime().ReportTrackedRead(ids.ForKey(ing.index, id), m.durability, m.changedAt)
}

// fetchWithClaim runs once this goroutine owns the single-flight claim
// for id: deep-verify the existing memo if any, otherwise execute, then
// release the claim and wake any waiters (spec.md §4.7.1 steps 3-4).
func (ing *Ingredient[K, V]) fetchWithClaim(db *engine.Database, key K, id ids.Id, dbKey ids.DatabaseKeyIndex) (value V) {
	result := depgraph.WaitResult{Kind: depgraph.Completed}
	defer func() {
		r := recover()
		ing.releaseClaim(id)
		if r != nil {
			if cp, ok := r.(*depgraph.CyclePanic); ok {
				db.Runtime().UnblockRuntimesBlockedOn(dbKey, depgraph.WaitResult{Kind: depgraph.CycleDetected, Cycle: cp.Cycle})
				panic(r)
			}
			db.Runtime().UnblockRuntimesBlockedOn(dbKey, depgraph.WaitResult{Kind: depgraph.Panicked})
			panic(r)
		}
		db.Runtime().UnblockRuntimesBlockedOn(dbKey, result)
	}()

	if ing.deepVerify(db, id, dbKey) {
		ing.mu.RLock()
		m := ing.memos[id.Index()]
		ing.mu.RUnlock()
		value = m.value
		return value
	}

	value = ing.doExecute(db, key, id, dbKey)
	return value
}

// tryClaim attempts to become the single-flight executor for id. It
// returns the current holder (which is self on success) and whether the
// claim was newly acquired.
func (ing *Ingredient[K, V]) tryClaim(self depgraph.RuntimeId, id ids.Id) (depgraph.RuntimeId, bool) {
	ing.claimMu.Lock()
	defer ing.claimMu.Unlock()
	if entry, ok := ing.claims[id.Index()]; ok {
		return entry.holder, false
	}
	ing.claims[id.Index()] = &claimEntry{holder: self, done: make(chan struct{})}
	return self, true
}

func (ing *Ingredient[K, V]) releaseClaim(id ids.Id) {
	ing.claimMu.Lock()
	defer ing.claimMu.Unlock()
	if entry, ok := ing.claims[id.Index()]; ok {
		close(entry.done)
		delete(ing.claims, id.Index())
	}
}
