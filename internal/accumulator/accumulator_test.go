package accumulator

import (
	"testing"

	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/function"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/input"
	"github.com/emberdb/ember/internal/revision"
)

func rowID(n int) ids.Id { return ids.IdFromIndex(uint32(n)) }

// TestAccumulatedCollectsDepthFirstInRecordedOrder reproduces spec.md §8
// scenario 1: a root query reads "a" (pushing log_a) before it reads "b"
// (pushing log_b); accumulated() must report them in that order.
func TestAccumulatedCollectsDepthFirstInRecordedOrder(t *testing.T) {
	db := engine.New()
	logs := New[string]()

	var a, b *function.Ingredient[int, int]
	a = function.New(db.Registry(), func(db *engine.Database, key int) int {
		logs.Clear(db)
		logs.Push(db, "log_a")
		return 1
	}, func(x, y int) bool { return x == y }, revision.High)
	b = function.New(db.Registry(), func(db *engine.Database, key int) int {
		logs.Clear(db)
		logs.Push(db, "log_b")
		return 2
	}, func(x, y int) bool { return x == y }, revision.High)

	var root *function.Ingredient[int, int]
	root = function.New(db.Registry(), func(db *engine.Database, key int) int {
		logs.Clear(db)
		av := a.Fetch(db, key)
		bv := b.Fetch(db, key)
		return av + bv
	}, func(x, y int) bool { return x == y }, revision.High)

	got := Accumulated(db, logs, root, 0)
	want := []string{"log_a", "log_b"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Accumulated() = %v, want %v", got, want)
	}
}

// TestAccumulatedRefreshesAfterInputEdit exercises the rest of scenario 1:
// editing an input that the root's subtree depends on and re-reading
// accumulated() must reflect the new execution's pushes, not the stale
// ones from before the edit.
func TestAccumulatedRefreshesAfterInputEdit(t *testing.T) {
	db := engine.New()
	flag := input.New[bool](db.Registry())
	flag.Set(db, rowID(0), false, revision.Low)
	logs := New[string]()

	var fn *function.Ingredient[int, int]
	fn = function.New(db.Registry(), func(db *engine.Database, key int) int {
		logs.Clear(db)
		if flag.Get(db, rowID(0)) {
			logs.Push(db, "flagged")
		} else {
			logs.Push(db, "unflagged")
		}
		return 0
	}, func(x, y int) bool { return x == y }, revision.Low)

	if got := Accumulated(db, logs, fn, 0); len(got) != 1 || got[0] != "unflagged" {
		t.Fatalf("Accumulated() = %v, want [unflagged]", got)
	}

	db.NewRevision()
	flag.Set(db, rowID(0), true, revision.Low)

	if got := Accumulated(db, logs, fn, 0); len(got) != 1 || got[0] != "flagged" {
		t.Fatalf("Accumulated() after edit = %v, want [flagged]", got)
	}
}
