package localstate

import (
	"testing"

	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/revision"
)

func key(n uint32) ids.DatabaseKeyIndex {
	return ids.DatabaseKeyIndex{Ingredient: ids.IngredientIndex(1), Key: ids.IdFromIndex(n)}
}

func TestPushQueryAndPop(t *testing.T) {
	var ls LocalState
	if ls.QueryInProgress() {
		t.Fatal("expected no query in progress on a fresh LocalState")
	}
	guard := ls.PushQuery(key(1))
	if !ls.QueryInProgress() {
		t.Fatal("expected query in progress after PushQuery")
	}
	if k, _, _, ok := ls.ActiveQuery(); !ok || k != key(1) {
		t.Fatalf("ActiveQuery() = %v, %v, want %v, true", k, ok, key(1))
	}
	popped := guard.Pop()
	if popped.Key != key(1) {
		t.Fatalf("Pop() returned frame for %v, want %v", popped.Key, key(1))
	}
	if ls.QueryInProgress() {
		t.Fatal("expected no query in progress after Pop")
	}
	if second := guard.Pop(); second != nil {
		t.Fatal("a second Pop() must be a no-op")
	}
}

func TestReportTrackedReadFoldsDurabilityAndChangedAt(t *testing.T) {
	var ls LocalState
	guard := ls.PushQuery(key(1))
	defer guard.Pop()

	dep := ids.ForKey(ids.IngredientIndex(2), ids.IdFromIndex(9))
	ls.ReportTrackedRead(dep, revision.Low, revision.Revision(5))

	_, durability, changedAt, ok := ls.ActiveQuery()
	if !ok {
		t.Fatal("expected active query")
	}
	if durability != revision.Low {
		t.Fatalf("MinDurability = %v, want Low", durability)
	}
	if changedAt != revision.Revision(5) {
		t.Fatalf("MaxChangedAt = %v, want 5", changedAt)
	}
}

func TestAddOutputAndIsOutput(t *testing.T) {
	var ls LocalState
	guard := ls.PushQuery(key(1))
	defer guard.Pop()

	dep := ids.ForKey(ids.IngredientIndex(3), ids.IdFromIndex(1))
	if ls.IsOutput(dep) {
		t.Fatal("unexpected output before AddOutput")
	}
	ls.AddOutput(dep)
	if !ls.IsOutput(dep) {
		t.Fatal("expected output after AddOutput")
	}
	// Adding the same output twice must not duplicate the edge.
	ls.AddOutput(dep)
	if got := len(guard.Query().Edges); got != 1 {
		t.Fatalf("Edges has %d entries, want 1 (AddOutput must dedup)", got)
	}
}

func TestDisambiguateIncrementsPerHash(t *testing.T) {
	var ls LocalState
	guard := ls.PushQuery(key(1))
	defer guard.Pop()

	first, _, _ := ls.Disambiguate(42)
	second, _, _ := ls.Disambiguate(42)
	other, _, _ := ls.Disambiguate(7)
	if first != 0 || second != 1 {
		t.Fatalf("Disambiguate(42) sequence = %d, %d, want 0, 1", first, second)
	}
	if other != 0 {
		t.Fatalf("Disambiguate(7) = %d, want 0 (independent hash bucket)", other)
	}
}

func TestDisambiguatePanicsWithNoActiveQuery(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when disambiguating with no active query")
		}
	}()
	var ls LocalState
	ls.Disambiguate(1)
}

func TestTakeStackAndRestoreStackRoundtrip(t *testing.T) {
	var ls LocalState
	guard := ls.PushQuery(key(1))
	ls.AddOutput(ids.ForKey(ids.IngredientIndex(5), ids.IdFromIndex(0)))

	stack := ls.TakeStack()
	if ls.QueryInProgress() {
		t.Fatal("expected stack to be empty after TakeStack")
	}
	if len(stack) != 1 || stack[0].Key != key(1) {
		t.Fatalf("TakeStack() = %+v, want one frame for %v", stack, key(1))
	}

	ls.RestoreStack(stack)
	if !ls.QueryInProgress() {
		t.Fatal("expected query in progress after RestoreStack")
	}
	guard.Pop()
}

func TestRemoveCycleParticipantsFiltersEdges(t *testing.T) {
	aq := NewActiveQuery(key(1))
	participant := key(2)
	unrelated := key(3)
	aq.ReportTrackedRead(ids.ForKey(participant.Ingredient, participant.Key), revision.High, revision.R1)
	aq.ReportTrackedRead(ids.ForKey(unrelated.Ingredient, unrelated.Key), revision.High, revision.R1)

	aq.RemoveCycleParticipants([]ids.DatabaseKeyIndex{participant})

	if len(aq.Edges) != 1 || aq.Edges[0].Dep.DatabaseKey() != unrelated {
		t.Fatalf("Edges = %+v, want only the edge to %v", aq.Edges, unrelated)
	}
}
