// Package runtime binds the revision clock, the per-thread active-query
// stack, and the shared cross-thread dependency graph into the one value
// (Runtime) that every ingredient executes against (spec.md §4.1, C1/C8/C9
// combined). Exactly one Runtime exists per logical thread of execution: the
// writer holds one, and each reader snapshot clones its own.
package runtime

import (
	"github.com/google/uuid"

	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/localstate"
	"github.com/emberdb/ember/internal/revision"
)

// sharedState is held by every Runtime cloned from the same database; it is
// the only part of a Runtime that crosses thread boundaries.
type sharedState struct {
	clock *revision.Clock
	graph *depgraph.DependencyGraph
}

// Runtime is the per-thread handle ingredients execute against. It is never
// shared between goroutines: Snapshot produces an independent Runtime for
// each reader, all pointing at the same sharedState.
type Runtime struct {
	id     depgraph.RuntimeId
	shared *sharedState
	local  localstate.LocalState
}

// New creates the single writer Runtime for a fresh database.
func New() *Runtime {
	return &Runtime{
		id: newRuntimeId(),
		shared: &sharedState{
			clock: revision.NewClock(),
			graph: depgraph.New(),
		},
	}
}

func newRuntimeId() depgraph.RuntimeId {
	return depgraph.RuntimeId(uuid.New())
}

// Id returns this Runtime's identity in the cross-thread dependency graph.
func (rt *Runtime) Id() depgraph.RuntimeId { return rt.id }

// Snapshot produces a fresh Runtime sharing this one's clock and dependency
// graph, for use by a second concurrent reader thread (spec.md §4.10). It
// panics if called while a query is in progress on rt, matching the
// "Snapshot may not be called recursively" rule.
func (rt *Runtime) Snapshot() *Runtime {
	if rt.local.QueryInProgress() {
		panic("ember: cannot snapshot a Runtime with a query in progress")
	}
	return &Runtime{id: newRuntimeId(), shared: rt.shared}
}

// CurrentRevision returns the database's current revision.
func (rt *Runtime) CurrentRevision() revision.Revision { return rt.shared.clock.CurrentRevision() }

// LastChangedRevision returns the most recent revision in which any input
// at the given durability level (or higher) changed.
func (rt *Runtime) LastChangedRevision(d revision.Durability) revision.Revision {
	return rt.shared.clock.LastChanged(d)
}

// NewRevision advances the clock, for use exclusively by the writer before
// applying a batch of input mutations (spec.md §4.1).
func (rt *Runtime) NewRevision() revision.Revision { return rt.shared.clock.NewRevision() }

// ReportTrackedWrite records that an input of the given durability changed
// in the current revision.
func (rt *Runtime) ReportTrackedWrite(d revision.Durability) { rt.shared.clock.ReportWrite(d) }

// UnwindIfCancelled panics with ErrCancelled if a write is pending against
// this database (spec.md §4.1, §7).
func (rt *Runtime) UnwindIfCancelled() {
	if rt.shared.clock.Cancelled() {
		panic(ErrCancelled)
	}
}

// SetCancellationFlag marks every outstanding reader snapshot as cancelled,
// so their next cooperative check unwinds.
func (rt *Runtime) SetCancellationFlag() { rt.shared.clock.SetCancelled() }

// PushQuery pushes a new active-query frame for key onto this thread's
// stack (spec.md §4.8). The caller must defer the returned guard's Pop.
func (rt *Runtime) PushQuery(key ids.DatabaseKeyIndex) *localstate.ActiveQueryGuard {
	return rt.local.PushQuery(key)
}

// ActiveQuery reports the top-of-stack query, if any.
func (rt *Runtime) ActiveQuery() (ids.DatabaseKeyIndex, revision.Durability, revision.Revision, bool) {
	return rt.local.ActiveQuery()
}

// ReportTrackedRead records a read dependency on the current query.
func (rt *Runtime) ReportTrackedRead(dep ids.DependencyIndex, durability revision.Durability, changedAt revision.Revision) {
	rt.local.ReportTrackedRead(dep, durability, changedAt)
}

// ReportUntrackedRead marks the current query as having performed an
// untracked read as of the current revision.
func (rt *Runtime) ReportUntrackedRead() {
	rt.local.ReportUntrackedRead(rt.CurrentRevision())
}

// AddOutput records dep as an output (tracked struct creation, specify
// call) of the current query.
func (rt *Runtime) AddOutput(dep ids.DependencyIndex) { rt.local.AddOutput(dep) }

// IsOutputOfActiveQuery tests whether dep was written by the current query.
func (rt *Runtime) IsOutputOfActiveQuery(dep ids.DependencyIndex) bool { return rt.local.IsOutput(dep) }

// DisambiguateEntity returns the next disambiguator for a tracked-struct
// creation hash within the current query, plus the query's accumulated
// durability/changed_at to stamp onto the new entity (spec.md §4.6).
func (rt *Runtime) DisambiguateEntity(hash uint64) (uint32, revision.Durability, revision.Revision) {
	return rt.local.Disambiguate(hash)
}

// BlockOnOrUnwind parks this thread until the runtime executing `key`
// finishes, handling any cycle that parking would close (spec.md §4.9,
// §5). It returns the result reported for `key`.
func (rt *Runtime) BlockOnOrUnwind(key ids.DatabaseKeyIndex, executor depgraph.RuntimeId, strategyOf func(ids.IngredientIndex) depgraph.CycleRecoveryStrategy) depgraph.WaitResult {
	stack := rt.local.TakeStack()
	restored, result := rt.shared.graph.BlockOn(rt.id, key, executor, stack, strategyOf)
	rt.local.RestoreStack(restored)
	return result
}

// UnblockRuntimesBlockedOn releases every thread parked on key once its
// executor has finished, panicked, or resolved its own cycle.
func (rt *Runtime) UnblockRuntimesBlockedOn(key ids.DatabaseKeyIndex, result depgraph.WaitResult) {
	rt.shared.graph.UnblockRuntimesBlockedOn(key, result)
}
