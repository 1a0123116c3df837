package function

import (
	"fmt"

	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/revision"
)

// Origin implements engine.Ingredient.
func (ing *Ingredient[K, V]) Origin(id ids.Id) (engine.Origin, bool) {
	ing.mu.RLock()
	defer ing.mu.RUnlock()
	m, ok := ing.memos[id.Index()]
	if !ok {
		return engine.Origin{}, false
	}
	return m.origin, true
}

// MarkValidatedOutput stamps the Assigned memo addressed by output as
// verified this revision: the specifying query it belongs to has just
// been confirmed still valid by the deep-verify walk that called this
// (spec.md §4.7.3).
func (ing *Ingredient[K, V]) MarkValidatedOutput(db *engine.Database, executor ids.DatabaseKeyIndex, output ids.DependencyIndex) {
	if !output.HasKey {
		return
	}
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if m, ok := ing.memos[output.Key.Index()]; ok {
		m.verifiedAt = db.Runtime().CurrentRevision()
	}
}

// RemoveStaleOutput drops the memo this ingredient holds for an output
// that its specifying query no longer produces (spec.md §4.7.4).
func (ing *Ingredient[K, V]) RemoveStaleOutput(executor ids.DatabaseKeyIndex, stale ids.DependencyIndex) {
	ing.SalsaStructDeleted(stale.Key)
}

// SalsaStructDeleted drops this ingredient's memo for id — reached either
// directly (RemoveStaleOutput above) or via a tracked-struct ingredient's
// deletion fan-out when this function is keyed on that struct's ids
// (spec.md §4.6 deletion).
func (ing *Ingredient[K, V]) SalsaStructDeleted(id ids.Id) {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	delete(ing.memos, id.Index())
}

// ResetOnNewRevision: function argument ids are never recycled — they are
// a permanent mapping from argument identity to Id, unlike interned or
// tracked-struct slots — so there is nothing to drain at a revision
// boundary. Displaced memos remain reachable through any outstanding
// reference for as long as the Go garbage collector needs them (spec.md
// §9's deferred-free queue exists to make that safe under Rust's manual
// memory management; Go's GC gives the same guarantee for free).
func (ing *Ingredient[K, V]) ResetOnNewRevision() bool              { return false }
func (ing *Ingredient[K, V]) ResetForNewRevision(revision.Revision) {}

// FmtIndex renders a function row id for diagnostics.
func (ing *Ingredient[K, V]) FmtIndex(id ids.Id) string {
	return fmt.Sprintf("fn%s", id)
}
