// Package depgraph implements the cross-thread wait-for graph and cycle
// engine (spec.md §4.9, C9). It has no knowledge of memoization; it only
// tracks "runtime X is waiting on runtime Y to finish computing database
// key K" and resolves cycles when they appear, cooperatively waking
// participants with a WaitResult.
package depgraph

import (
	"sort"
	"sync"

	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/localstate"
)

// RuntimeId uniquely identifies a runtime (one reader or the writer) for
// the lifetime of one snapshot. The concrete value is produced by the
// runtime package (backed by a UUID); depgraph only needs it to be
// comparable.
type RuntimeId [16]byte

// CycleRecoveryStrategy is the policy an ingredient declares for handling
// its own participation in a cycle (spec.md §4.7.7).
type CycleRecoveryStrategy uint8

const (
	// Panic unwinds the stack with the Cycle value when this ingredient
	// participates in a cycle.
	Panic CycleRecoveryStrategy = iota
	// Fallback runs fixpoint iteration starting from a user-supplied
	// initial value.
	Fallback
)

// WaitResult is delivered to a parked runtime when the key it is blocked
// on finishes, one way or another (spec.md §4.9).
type WaitResult struct {
	Kind  WaitKind
	Cycle *localstate.Cycle
}

// WaitKind distinguishes the three ways a blocked runtime can be released.
type WaitKind uint8

const (
	Completed WaitKind = iota
	Panicked
	CycleDetected
)

// CyclePanic is the payload of a Go panic raised when a cycle has no
// Fallback-capable participant anywhere in its chain (spec.md §7: "Cycle
// errors ... a panic carrying the Cycle value").
type CyclePanic struct {
	Cycle *localstate.Cycle
}

type blockedEntry struct {
	to    RuntimeId
	key   ids.DatabaseKeyIndex
	stack []*localstate.ActiveQuery
	done  chan WaitResult
}

// DependencyGraph is the shared, mutex-protected wait-for graph. One
// instance is shared by every Runtime cloned from the same database.
type DependencyGraph struct {
	mu      sync.Mutex
	blocked map[RuntimeId]*blockedEntry
}

// New returns an empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{blocked: make(map[RuntimeId]*blockedEntry)}
}

// dependsOnLocked reports whether `from` is (transitively) blocked, directly
// or through a chain of other blocked runtimes, on `to`. Must be called
// with mu held.
func (dg *DependencyGraph) dependsOnLocked(from, to RuntimeId) bool {
	cur := from
	seen := map[RuntimeId]struct{}{}
	for {
		if cur == to {
			return true
		}
		if _, ok := seen[cur]; ok {
			return false
		}
		seen[cur] = struct{}{}
		entry, ok := dg.blocked[cur]
		if !ok {
			return false
		}
		cur = entry.to
	}
}

// strategyLookup resolves the cycle recovery strategy declared for the
// ingredient owning a database key.
type strategyLookup func(ids.IngredientIndex) CycleRecoveryStrategy

// BlockOn parks the calling runtime (self) on the runtime (to) that is
// presently executing (or validating) `key`, publishing `stack` — the
// caller's own active-query stack, already removed from its LocalState —
// so that a concurrent cycle check from another thread can see it.
//
// If parking would close a cycle back on the calling thread, BlockOn
// resolves it immediately per spec.md §4.9 instead of parking: it returns
// a WaitResult of kind CycleDetected (the caller must throw/catch it, see
// spec.md §7) or panics with *CyclePanic if no participant can recover.
//
// On a normal return, BlockOn blocks until `to` (or whichever runtime
// currently holds the claim after cycle resolution) finishes, then returns
// the stack to restore and the result.
func (dg *DependencyGraph) BlockOn(self RuntimeId, key ids.DatabaseKeyIndex, to RuntimeId, stack []*localstate.ActiveQuery, strategyOf strategyLookup) (restoredStack []*localstate.ActiveQuery, result WaitResult) {
	dg.mu.Lock()

	if dg.dependsOnLocked(to, self) {
		action, cyc := dg.resolveCycleLocked(self, stack, to, strategyOf)
		switch action {
		case cycleActionThrow:
			dg.mu.Unlock()
			return stack, WaitResult{Kind: CycleDetected, Cycle: cyc}
		case cycleActionPanic:
			dg.mu.Unlock()
			panic(&CyclePanic{Cycle: cyc})
		case cycleActionContinue:
			// Fall through: cycle broken (participants marked/unblocked),
			// `to` no longer depends on `self`; proceed to block normally.
		}
	}

	entry := &blockedEntry{to: to, key: key, stack: stack, done: make(chan WaitResult, 1)}
	dg.blocked[self] = entry
	dg.mu.Unlock()

	res := <-entry.done

	dg.mu.Lock()
	delete(dg.blocked, self)
	dg.mu.Unlock()

	return stack, res
}

type cycleAction uint8

const (
	cycleActionContinue cycleAction = iota
	cycleActionThrow
	cycleActionPanic
)

// resolveCycleLocked identifies the participants of the cycle that would
// form between self and to, marks Fallback-capable frames as provisional
// cycle heads, and unblocks every parked participant with a CycleDetected
// WaitResult. Must be called with mu held; the lock is held throughout,
// since every send here goes to a buffered channel of size 1 and does not
// block.
//
// Simplification (recorded in DESIGN.md): real salsa lets a single cycle
// mix Panic- and Fallback-recovery participants, marking only the
// fallback-capable suffix of each thread's frame chain. We determine one
// recovery mode for the whole cycle: Fallback if any participant's
// ingredient declares Fallback, else Panic. Every concrete scenario in
// spec.md §8 is a homogeneous cycle, so this is observationally identical
// there.
func (dg *DependencyGraph) resolveCycleLocked(self RuntimeId, selfStack []*localstate.ActiveQuery, to RuntimeId, strategyOf strategyLookup) (cycleAction, *localstate.Cycle) {
	type participant struct {
		runtime RuntimeId
		frames  []*localstate.ActiveQuery
	}
	var participants []participant

	cur := to
	for {
		if cur == self {
			participants = append(participants, participant{runtime: self, frames: selfStack})
			break
		}
		entry, ok := dg.blocked[cur]
		if !ok {
			// Shouldn't happen since dependsOnLocked(to, self) held, but
			// guard against an inconsistent graph rather than loop forever.
			break
		}
		participants = append(participants, participant{runtime: cur, frames: entry.stack})
		cur = entry.to
	}

	var keys []ids.DatabaseKeyIndex
	fallback := false
	for _, p := range participants {
		for _, f := range p.frames {
			keys = append(keys, f.Key)
			if strategyOf(f.Key.Ingredient) == Fallback {
				fallback = true
			}
		}
	}
	keys = canonicalize(keys)
	cyc := &localstate.Cycle{Participants: keys}

	if !fallback {
		return cycleActionPanic, cyc
	}

	var minDur = participants[0].frames[0].MinDurability
	var maxChanged = participants[0].frames[0].MaxChangedAt
	for _, p := range participants {
		for _, f := range p.frames {
			if f.MinDurability < minDur {
				minDur = f.MinDurability
			}
			if f.MaxChangedAt > maxChanged {
				maxChanged = f.MaxChangedAt
			}
		}
	}

	for _, p := range participants {
		for _, f := range p.frames {
			f.RemoveCycleParticipants(keys)
			if f.MinDurability > minDur {
				f.MinDurability = minDur
			}
			if f.MaxChangedAt < maxChanged {
				f.MaxChangedAt = maxChanged
			}
			f.Cycle = cyc
		}
		if p.runtime != self {
			if entry, ok := dg.blocked[p.runtime]; ok {
				entry.done <- WaitResult{Kind: CycleDetected, Cycle: cyc}
			}
		}
	}

	return cycleActionThrow, cyc
}

// canonicalize deduplicates and sorts a key slice, so the minimum key is
// first, giving a deterministic cycle representation regardless of which
// participant happened to detect it (spec.md §4.9).
func canonicalize(keys []ids.DatabaseKeyIndex) []ids.DatabaseKeyIndex {
	dedup := make([]ids.DatabaseKeyIndex, 0, len(keys))
	seen := map[ids.DatabaseKeyIndex]struct{}{}
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		dedup = append(dedup, k)
	}
	sort.Slice(dedup, func(i, j int) bool {
		a, b := dedup[i], dedup[j]
		if a.Ingredient != b.Ingredient {
			return a.Ingredient < b.Ingredient
		}
		return a.Key.Index() < b.Key.Index()
	})
	return dedup
}

// UnblockRuntimesBlockedOn releases every runtime parked on `key` with the
// given result (spec.md §4.9). Called by the executor of `key` once it has
// completed, panicked, or been caught in a cycle it resolved itself.
func (dg *DependencyGraph) UnblockRuntimesBlockedOn(key ids.DatabaseKeyIndex, result WaitResult) {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	for id, entry := range dg.blocked {
		if entry.key == key {
			entry.done <- result
			delete(dg.blocked, id)
		}
	}
}
