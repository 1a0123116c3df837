package function

import (
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
)

// Specify implements spec.md §4.7.5: only legal while some query is
// executing. Installs a memo with origin Assigned and records an Output
// edge on the specifying query, so a later revision that fails to
// re-specify correctly invalidates it (deepVerify treats Assigned memos
// not re-stamped this revision as stale).
func (ing *Ingredient[K, V]) Specify(db *engine.Database, key K, value V) {
	_, durability, changedAt, ok := db.Runtime().ActiveQuery()
	if !ok {
		engine.LogicError("specify called outside of an active query")
	}
	if ing.lru != nil {
		engine.LogicError("specify called on an ingredient with LRU enabled")
	}
	id := ing.idFor(key)
	current := db.Runtime().CurrentRevision()

	m := &memo[V]{
		value:      value,
		origin:     engine.Origin{Kind: engine.Assigned},
		durability: durability,
		changedAt:  changedAt,
		verifiedAt: current,
	}
	ing.storeMemo(id, m)

	dep := ids.ForKey(ing.index, id)
	db.Runtime().AddOutput(dep)
}
