package engine

import (
	"testing"

	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/revision"
)

// fakeIngredient is the minimal test double used to exercise Registry and
// Database dispatch without pulling in a concrete ingredient kind.
type fakeIngredient struct {
	index        ids.IngredientIndex
	resetCalls   int
	changedAfter bool
	noReset      bool
}

func (f *fakeIngredient) MaybeChangedAfter(db *Database, dep ids.DependencyIndex, since revision.Revision) bool {
	return f.changedAfter
}
func (f *fakeIngredient) Origin(id ids.Id) (Origin, bool)           { return Origin{Kind: BaseInput}, true }
func (f *fakeIngredient) CycleRecoveryStrategy() depgraph.CycleRecoveryStrategy {
	return depgraph.Panic
}
func (f *fakeIngredient) MarkValidatedOutput(*Database, ids.DatabaseKeyIndex, ids.DependencyIndex) {}
func (f *fakeIngredient) RemoveStaleOutput(ids.DatabaseKeyIndex, ids.DependencyIndex)   {}
func (f *fakeIngredient) SalsaStructDeleted(ids.Id)                                     {}
func (f *fakeIngredient) ResetOnNewRevision() bool                                      { return !f.noReset }
func (f *fakeIngredient) ResetForNewRevision(revision.Revision)                         { f.resetCalls++ }
func (f *fakeIngredient) FmtIndex(id ids.Id) string                                     { return id.String() }

func TestRegistryRegisterAssignsSequentialIndices(t *testing.T) {
	r := NewRegistry()
	var first, second *fakeIngredient
	i0 := r.Register(func(idx ids.IngredientIndex) Ingredient {
		first = &fakeIngredient{index: idx}
		return first
	})
	i1 := r.Register(func(idx ids.IngredientIndex) Ingredient {
		second = &fakeIngredient{index: idx}
		return second
	})
	if i0 != 0 || i1 != 1 {
		t.Fatalf("indices = %v, %v, want 0, 1", i0, i1)
	}
	if r.Ingredient(i0) != first || r.Ingredient(i1) != second {
		t.Fatal("Ingredient() did not return the registered instances")
	}
}

func TestRegistryMaybeChangedAfterDispatches(t *testing.T) {
	r := NewRegistry()
	idx := r.Register(func(idx ids.IngredientIndex) Ingredient {
		return &fakeIngredient{index: idx, changedAfter: true}
	})
	dep := ids.ForKey(idx, ids.IdFromIndex(0))
	if !r.MaybeChangedAfter(nil, dep, revision.R1) {
		t.Fatal("expected dispatch to report changed")
	}
}

func TestRegistryResetForNewRevisionOnlyCallsOptedInIngredients(t *testing.T) {
	r := NewRegistry()
	var in *fakeIngredient
	var out *fakeIngredient
	r.Register(func(idx ids.IngredientIndex) Ingredient {
		in = &fakeIngredient{index: idx}
		return in
	})
	r.Register(func(idx ids.IngredientIndex) Ingredient {
		out = &fakeIngredient{index: idx, noReset: true}
		return out
	})
	r.ResetForNewRevision(revision.R1)
	if in.resetCalls != 1 {
		t.Fatalf("opted-in ingredient reset %d times, want 1", in.resetCalls)
	}
	if out.resetCalls != 0 {
		t.Fatalf("opted-out ingredient reset %d times, want 0", out.resetCalls)
	}
}

func TestDatabaseNewRevisionRejectsOutstandingSnapshot(t *testing.T) {
	db := New()
	snap := db.Snapshot()
	defer func() {
		if recover() == nil {
			t.Fatal("expected NewRevision to panic with an outstanding snapshot")
		}
	}()
	defer snap.Close()
	db.NewRevision()
}

func TestDatabaseNewRevisionSucceedsAfterSnapshotClosed(t *testing.T) {
	db := New()
	snap := db.Snapshot()
	snap.Close()
	if _, err := recoverFrom(func() { db.NewRevision() }); err != nil {
		t.Fatalf("unexpected panic: %v", err)
	}
}

func TestSnapshotCloseOnWriterIsLogicError(t *testing.T) {
	db := New()
	if _, err := recoverFrom(func() { db.Close() }); err == nil {
		t.Fatal("expected Close on the writer handle to panic")
	}
}

func recoverFrom(f func()) (ok bool, panicValue any) {
	defer func() {
		panicValue = recover()
	}()
	f()
	return true, nil
}
