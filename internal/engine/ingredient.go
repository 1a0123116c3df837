// Package engine provides the ingredient capability set (C3) and the
// Database façade that binds the runtime, the ingredient registry, and the
// event hook into the one handle every generated accessor executes against
// (C10, spec.md §4.3, §4.10). Concrete ingredient kinds — input, interned,
// tracked struct, function — live in their own packages and depend on
// engine, never the reverse.
package engine

import (
	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/localstate"
	"github.com/emberdb/ember/internal/revision"
)

// OriginKind classifies how a memoized value came to exist (spec.md §4.7.3).
type OriginKind uint8

const (
	// BaseInput values are always considered valid; only an explicit
	// Set can change them, which bumps the revision directly.
	BaseInput OriginKind = iota
	// Assigned values were installed by a specify call from another
	// query; valid iff that specifying query re-validated this revision.
	Assigned
	// Derived values were computed from a recorded, replayable sequence
	// of edges.
	Derived
	// DerivedUntracked values read something outside the tracked graph
	// and can never be revalidated without re-execution.
	DerivedUntracked
)

// Origin describes a memo's provenance; Edges is populated only when Kind
// is Derived.
type Origin struct {
	Kind  OriginKind
	Edges []localstate.Edge
}

// Ingredient is the capability set every ingredient kind implements
// (spec.md §9, "Polymorphism over ingredient kinds"). The registry
// dispatches to these methods purely by IngredientIndex; there is no
// further subtyping.
type Ingredient interface {
	// MaybeChangedAfter answers whether the row addressed by dep might
	// have changed since `since`, recursively verifying as needed.
	MaybeChangedAfter(db *Database, dep ids.DependencyIndex, since revision.Revision) bool

	// Origin reports the provenance of the given row, or ok=false if the
	// row has never been populated.
	Origin(id ids.Id) (Origin, bool)

	// CycleRecoveryStrategy reports this ingredient's declared policy for
	// participating in a cross-thread cycle (spec.md §4.7.7). Ingredients
	// that can never participate in a cycle (input, interned) report Panic.
	CycleRecoveryStrategy() depgraph.CycleRecoveryStrategy

	// MarkValidatedOutput is called eagerly during deep-verify, before any
	// later input edge is checked, so that a query reading its own
	// creation's fields observes them as fresh (spec.md §4.7.3).
	MarkValidatedOutput(db *Database, executor ids.DatabaseKeyIndex, output ids.DependencyIndex)

	// RemoveStaleOutput routes a (prior_outputs ∖ new_outputs) entry to
	// deletion (spec.md §4.7.4).
	RemoveStaleOutput(executor ids.DatabaseKeyIndex, stale ids.DependencyIndex)

	// SalsaStructDeleted notifies this ingredient that id, one of its own
	// rows, has been deleted by its creator's re-execution; any memo keyed
	// on id must be dropped (spec.md §4.6).
	SalsaStructDeleted(id ids.Id)

	// ResetOnNewRevision reports whether ResetForNewRevision should be
	// invoked when the clock advances (the RESET_ON_NEW_REVISION constant
	// of spec.md §4.3).
	ResetOnNewRevision() bool

	// ResetForNewRevision drains this ingredient's deferred-free queue and
	// performs any other per-revision bookkeeping. current is the revision
	// the clock was just bumped to.
	ResetForNewRevision(current revision.Revision)

	// FmtIndex renders id for diagnostics (fmt_index, debug only).
	FmtIndex(id ids.Id) string
}
