// Package localstate implements the active-query stack (spec.md §4.8, C8).
// A LocalState is owned by exactly one Runtime value; since a Runtime is
// never shared between goroutines (each reader thread gets its own Runtime
// via Snapshot), the stack it holds plays the role of Rust's thread-local
// state without needing a goroutine-local lookup: ownership of the *Runtime
// pointer already pins it to one logical thread of execution.
package localstate

import (
	"fmt"
	"sync"

	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/revision"
)

// EdgeKind classifies one entry recorded on an ActiveQuery frame.
type EdgeKind uint8

const (
	// Input marks a read of another ingredient's row.
	Input EdgeKind = iota
	// Output marks a tracked struct created, or a value specified, by the
	// active query.
	Output
)

func (k EdgeKind) String() string {
	if k == Output {
		return "Output"
	}
	return "Input"
}

// Edge is one recorded read or write, in the order it was issued.
type Edge struct {
	Kind EdgeKind
	Dep  ids.DependencyIndex
}

// Cycle is the canonical representation of a detected cross-thread cycle:
// the sorted, deduplicated list of participating database keys (spec.md
// §4.9, "Design Notes / Cycle detection without global locks").
type Cycle struct {
	Participants []ids.DatabaseKeyIndex
}

func (c *Cycle) String() string {
	return fmt.Sprintf("cycle%v", c.Participants)
}

// ActiveQuery is one frame of the active-query stack: the bookkeeping for
// a single executing query invocation.
type ActiveQuery struct {
	Key           ids.DatabaseKeyIndex
	Edges         []Edge
	MinDurability revision.Durability
	MaxChangedAt  revision.Revision
	UntrackedRead bool

	// disambiguatorMap assigns successive disambiguators to repeated
	// tracked-struct creation hashes within this one query execution
	// (spec.md §4.6 step 2).
	disambiguatorMap map[uint64]uint32

	// outputs is the set of DependencyIndex values this query has written
	// (tracked struct creations, specify calls) — used for O(1)
	// is_output tests (spec.md §4.8).
	outputs map[ids.DependencyIndex]struct{}

	// Cycle is set when this frame is a participant of a detected cycle
	// with Fallback recovery; nil otherwise.
	Cycle *Cycle
}

// NewActiveQuery creates a fresh frame for the given query key, with
// MinDurability defaulting to the maximum (vacuously true until an edge
// narrows it) and MaxChangedAt to zero.
func NewActiveQuery(key ids.DatabaseKeyIndex) *ActiveQuery {
	return &ActiveQuery{
		Key:              key,
		MinDurability:    revision.High,
		disambiguatorMap: make(map[uint64]uint32),
		outputs:          make(map[ids.DependencyIndex]struct{}),
	}
}

// ReportTrackedRead appends an Input edge and folds the read's durability
// and changed_at into the running min/max (spec.md §4.8).
func (aq *ActiveQuery) ReportTrackedRead(dep ids.DependencyIndex, durability revision.Durability, changedAt revision.Revision) {
	aq.Edges = append(aq.Edges, Edge{Kind: Input, Dep: dep})
	aq.MinDurability = revision.Min(aq.MinDurability, durability)
	aq.MaxChangedAt = revision.Max(aq.MaxChangedAt, changedAt)
}

// ReportUntrackedRead marks this frame as having read something outside
// the tracked graph; its origin becomes DerivedUntracked and it can never
// be revalidated without re-execution.
func (aq *ActiveQuery) ReportUntrackedRead(now revision.Revision) {
	aq.UntrackedRead = true
	aq.MaxChangedAt = revision.Max(aq.MaxChangedAt, now)
}

// AddOutput appends an Output edge and records dep in the outputs set,
// unless it is already present.
func (aq *ActiveQuery) AddOutput(dep ids.DependencyIndex) {
	if _, ok := aq.outputs[dep]; ok {
		return
	}
	aq.outputs[dep] = struct{}{}
	aq.Edges = append(aq.Edges, Edge{Kind: Output, Dep: dep})
}

// IsOutput reports whether dep was written by this frame.
func (aq *ActiveQuery) IsOutput(dep ids.DependencyIndex) bool {
	_, ok := aq.outputs[dep]
	return ok
}

// Disambiguate returns the next disambiguator for a tracked-struct creation
// hash within this frame (spec.md §4.6 step 2), along with a snapshot of
// this frame's current durability/changed_at (the "current deps").
func (aq *ActiveQuery) Disambiguate(hash uint64) (uint32, revision.Durability, revision.Revision) {
	next := aq.disambiguatorMap[hash]
	aq.disambiguatorMap[hash] = next + 1
	return next, aq.MinDurability, aq.MaxChangedAt
}

// RemoveCycleParticipants strips edges pointing at any of the given cycle
// participants: once a strongly-connected component is identified, only
// dependencies leading outside of it matter for convergence.
func (aq *ActiveQuery) RemoveCycleParticipants(participants []ids.DatabaseKeyIndex) {
	set := make(map[ids.DatabaseKeyIndex]struct{}, len(participants))
	for _, p := range participants {
		set[p] = struct{}{}
	}
	filtered := aq.Edges[:0:0]
	for _, e := range aq.Edges {
		if e.Dep.HasKey {
			if _, in := set[e.Dep.DatabaseKey()]; in {
				continue
			}
		}
		filtered = append(filtered, e)
	}
	aq.Edges = filtered
}

// TakeInputsFrom merges another frame's accumulated min-durability and
// max-changed-at into aq. Cycle resolution in internal/depgraph folds these
// values inline and does not call it.
func (aq *ActiveQuery) TakeInputsFrom(other *ActiveQuery) {
	aq.MinDurability = revision.Min(aq.MinDurability, other.MinDurability)
	aq.MaxChangedAt = revision.Max(aq.MaxChangedAt, other.MaxChangedAt)
}

// LocalState is the per-Runtime active-query stack.
type LocalState struct {
	mu    sync.Mutex
	stack []*ActiveQuery
}

// PushQuery pushes a fresh frame and returns a guard whose Pop method must
// be deferred by the caller to guarantee release on every exit path,
// including panics (spec.md §4.8: "push_query, pop_query with RAII-style
// guaranteed release on all exit paths").
func (ls *LocalState) PushQuery(key ids.DatabaseKeyIndex) *ActiveQueryGuard {
	ls.mu.Lock()
	aq := NewActiveQuery(key)
	ls.stack = append(ls.stack, aq)
	ls.mu.Unlock()
	return &ActiveQueryGuard{ls: ls, query: aq}
}

// ActiveQueryGuard releases its frame exactly once, from Pop, typically via
// `defer guard.Pop()` immediately after PushQuery.
type ActiveQueryGuard struct {
	ls    *LocalState
	query *ActiveQuery
}

// Query returns the frame this guard owns.
func (g *ActiveQueryGuard) Query() *ActiveQuery { return g.query }

// Pop removes this guard's frame from the stack and returns it. Safe to
// call multiple times; only the first call has an effect.
func (g *ActiveQueryGuard) Pop() *ActiveQuery {
	if g.query == nil {
		return nil
	}
	g.ls.mu.Lock()
	defer g.ls.mu.Unlock()
	n := len(g.ls.stack)
	if n > 0 && g.ls.stack[n-1] == g.query {
		g.ls.stack = g.ls.stack[:n-1]
	}
	q := g.query
	g.query = nil
	return q
}

// ActiveQuery returns the top-of-stack frame's key and a StampedValue-like
// snapshot of its current accumulated durability/changed_at, or ok=false
// if no query is in progress (spec.md §4.1 Runtime.active_query).
func (ls *LocalState) ActiveQuery() (key ids.DatabaseKeyIndex, durability revision.Durability, changedAt revision.Revision, ok bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if len(ls.stack) == 0 {
		return ids.DatabaseKeyIndex{}, 0, 0, false
	}
	top := ls.stack[len(ls.stack)-1]
	return top.Key, top.MinDurability, top.MaxChangedAt, true
}

// QueryInProgress reports whether this Runtime currently has any query on
// its stack — used to forbid Snapshot mid-query (spec.md §4.10).
func (ls *LocalState) QueryInProgress() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.stack) > 0
}

// ReportTrackedRead records an Input edge on the top-of-stack frame, if
// any; reads issued outside any query are simply dropped (e.g. direct
// calls from the embedder outside of a tracked function).
func (ls *LocalState) ReportTrackedRead(dep ids.DependencyIndex, durability revision.Durability, changedAt revision.Revision) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if n := len(ls.stack); n > 0 {
		ls.stack[n-1].ReportTrackedRead(dep, durability, changedAt)
	}
}

// ReportUntrackedRead marks the top-of-stack frame DerivedUntracked.
func (ls *LocalState) ReportUntrackedRead(now revision.Revision) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if n := len(ls.stack); n > 0 {
		ls.stack[n-1].ReportUntrackedRead(now)
	}
}

// AddOutput records an Output edge on the top-of-stack frame.
func (ls *LocalState) AddOutput(dep ids.DependencyIndex) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if n := len(ls.stack); n > 0 {
		ls.stack[n-1].AddOutput(dep)
	}
}

// IsOutput tests the top-of-stack frame's output set.
func (ls *LocalState) IsOutput(dep ids.DependencyIndex) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if n := len(ls.stack); n > 0 {
		return ls.stack[n-1].IsOutput(dep)
	}
	return false
}

// Disambiguate delegates to the top-of-stack frame.
func (ls *LocalState) Disambiguate(hash uint64) (uint32, revision.Durability, revision.Revision) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	n := len(ls.stack)
	if n == 0 {
		panic("ember: disambiguate called with no active query")
	}
	return ls.stack[n-1].Disambiguate(hash)
}

// TakeStack atomically removes and returns the entire stack — used when a
// Runtime is about to block on a condition variable, so the stack can be
// published for cycle detection by other threads before sleeping (spec.md
// §5: "must publish its current active-query stack before sleeping").
func (ls *LocalState) TakeStack() []*ActiveQuery {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	stack := ls.stack
	ls.stack = nil
	return stack
}

// RestoreStack reinstates a stack previously removed by TakeStack.
func (ls *LocalState) RestoreStack(stack []*ActiveQuery) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.stack = stack
}

// Snapshot returns a read-only copy of the current stack for cycle
// detection, without removing it.
func (ls *LocalState) Snapshot() []*ActiveQuery {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]*ActiveQuery, len(ls.stack))
	copy(out, ls.stack)
	return out
}
