package ember_test

import (
	"testing"

	"github.com/emberdb/ember/internal/demo"
	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/function"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/input"
	"github.com/emberdb/ember/internal/revision"
)

func rowID(n int) ids.Id { return ids.IdFromIndex(uint32(n)) }

// TestNoChangeStability is P1: calling q(k) twice without mutating inputs
// executes the user function exactly once.
func TestNoChangeStability(t *testing.T) {
	db := engine.New()
	in := input.New[int](db.Registry())
	calls := 0
	q := function.New(db.Registry(), func(db *engine.Database, key int) int {
		calls++
		return in.Get(db, rowID(key))
	}, func(a, b int) bool { return a == b }, revision.High)

	in.Set(db, rowID(1), 5, revision.High)
	if got := q.Fetch(db, 1); got != 5 {
		t.Fatalf("Fetch() = %d, want 5", got)
	}
	if got := q.Fetch(db, 1); got != 5 {
		t.Fatalf("second Fetch() = %d, want 5", got)
	}
	if calls != 1 {
		t.Fatalf("execute ran %d times, want 1", calls)
	}
}

// TestBackdatingStopsDownstreamRecompute is P2: when a recomputed result
// equals the old one, a downstream query depending only on it does not
// re-execute.
func TestBackdatingStopsDownstreamRecompute(t *testing.T) {
	db := engine.New()
	in := input.New[int](db.Registry())

	parity := function.New(db.Registry(), func(db *engine.Database, key int) int {
		return in.Get(db, rowID(key)) % 2
	}, func(a, b int) bool { return a == b }, revision.Low)

	downstreamCalls := 0
	var downstream *function.Ingredient[int, int]
	downstream = function.New(db.Registry(), func(db *engine.Database, key int) int {
		downstreamCalls++
		return parity.Fetch(db, key) * 100
	}, func(a, b int) bool { return a == b }, revision.Low)

	in.Set(db, rowID(1), 4, revision.Low)
	if got := downstream.Fetch(db, 1); got != 0 {
		t.Fatalf("downstream.Fetch() = %d, want 0", got)
	}
	if downstreamCalls != 1 {
		t.Fatalf("downstream ran %d times, want 1", downstreamCalls)
	}

	db.NewRevision()
	in.Set(db, rowID(1), 6, revision.Low) // still even: parity unchanged

	if got := downstream.Fetch(db, 1); got != 0 {
		t.Fatalf("downstream.Fetch() after backdated change = %d, want 0", got)
	}
	if downstreamCalls != 1 {
		t.Fatalf("downstream ran %d times after backdated change, want 1 (still)", downstreamCalls)
	}
}

// TestDurabilityShortcutSkipsEdgeWalk is P3: a memo of durability >= d is
// shallow-verified (no edge walk, hence no re-execution) whenever no input
// of durability >= d has changed since it was last verified.
func TestDurabilityShortcutSkipsEdgeWalk(t *testing.T) {
	db := engine.New()
	highInput := input.New[int](db.Registry())
	lowInput := input.New[int](db.Registry())

	calls := 0
	q := function.New(db.Registry(), func(db *engine.Database, key int) int {
		calls++
		return highInput.Get(db, rowID(key))
	}, func(a, b int) bool { return a == b }, revision.High)

	highInput.Set(db, rowID(1), 1, revision.High)
	q.Fetch(db, 1)

	// Bump the revision via an unrelated Low-durability input. Since the
	// memo's claimed durability is High and no High input changed, the next
	// Fetch must shallow-verify without re-executing.
	db.NewRevision()
	lowInput.Set(db, rowID(99), 0, revision.Low)

	if got := q.Fetch(db, 1); got != 1 {
		t.Fatalf("Fetch() = %d, want 1", got)
	}
	if calls != 1 {
		t.Fatalf("execute ran %d times, want 1 (durability shortcut should apply)", calls)
	}
}

// TestStaleTrackedStructDeletedBeforeNextRevisionReaders is P5: a tracked
// struct produced in revision R but not reproduced in R+1 is gone by the
// time anything reads memos from R+1 — exercised through the demo host,
// where a shrinking expression drops nodes that a prior parse created.
func TestStaleTrackedStructDeletedBeforeNextRevisionReaders(t *testing.T) {
	d := demo.New()
	d.SetSource(0, "1 + 2 + 3")
	if got := d.Eval(0); got != 6 {
		t.Fatalf("Eval() = %d, want 6", got)
	}

	d.SetSource(0, "9")
	if got := d.Eval(0); got != 9 {
		t.Fatalf("Eval() after shrinking source = %d, want 9", got)
	}
}

// TestCycleFixpointConvergesAndStopsIterating is P6/P7: a fallback-recovery
// cycle with a converging step function settles on a value and does not
// re-iterate on a subsequent, unchanged query.
func TestCycleFixpointConvergesAndStopsIterating(t *testing.T) {
	db := engine.New()
	iterations := 0
	var fn *function.Ingredient[int, int]
	fn = function.New(db.Registry(), func(db *engine.Database, key int) int {
		iterations++
		current := fn.Fetch(db, key)
		next := current + 1
		if next > 3 {
			next = 3
		}
		return next
	}, func(a, b int) bool { return a == b }, revision.High).WithCycleRecovery(function.CycleRecovery[int, int]{
		Strategy: depgraph.Fallback,
		Initial:  func(int) int { return 0 },
		Iterate: func(old, new int, count int) (bool, int) {
			return old != new && count < 3, new
		},
	})

	if got := fn.Fetch(db, 0); got != 3 {
		t.Fatalf("Fetch(0) = %d, want 3", got)
	}
	settled := iterations

	if got := fn.Fetch(db, 0); got != 3 {
		t.Fatalf("second Fetch(0) = %d, want 3", got)
	}
	if iterations != settled {
		t.Fatalf("iterations grew from %d to %d on a re-query with no input change", settled, iterations)
	}
}
