package function

import (
	"testing"

	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/localstate"
	"github.com/emberdb/ember/internal/revision"
)

// orderRecorder is a minimal engine.Ingredient whose only job is to record
// the order in which deepVerify calls MarkValidatedOutput versus
// MaybeChangedAfter against it, for the single dependency both edges below
// point at.
type orderRecorder struct {
	calls *[]string
}

func (r *orderRecorder) MaybeChangedAfter(*engine.Database, ids.DependencyIndex, revision.Revision) bool {
	*r.calls = append(*r.calls, "MaybeChangedAfter")
	return false
}
func (r *orderRecorder) Origin(ids.Id) (engine.Origin, bool)   { return engine.Origin{}, false }
func (r *orderRecorder) CycleRecoveryStrategy() depgraph.CycleRecoveryStrategy {
	return depgraph.Panic
}
func (r *orderRecorder) MarkValidatedOutput(*engine.Database, ids.DatabaseKeyIndex, ids.DependencyIndex) {
	*r.calls = append(*r.calls, "MarkValidatedOutput")
}
func (r *orderRecorder) RemoveStaleOutput(ids.DatabaseKeyIndex, ids.DependencyIndex) {}
func (r *orderRecorder) SalsaStructDeleted(ids.Id)                                   {}
func (r *orderRecorder) ResetOnNewRevision() bool                                    { return false }
func (r *orderRecorder) ResetForNewRevision(revision.Revision)                       {}
func (r *orderRecorder) FmtIndex(id ids.Id) string                                   { return id.String() }

// TestDeepVerifyMarksOutputBeforeCheckingLaterInput is the regression test
// promised for spec.md §4.7.3's ordering subtlety: a memo whose recorded
// edges are [Output(dep), Input(dep)] — the shape produced by a query that
// creates a tracked struct and then reads one of its own fields — must have
// its Output edge validated before the Input edge referring to the same
// dependency is checked, so the struct is not mistaken for deleted.
func TestDeepVerifyMarksOutputBeforeCheckingLaterInput(t *testing.T) {
	db := engine.New()
	var calls []string
	recorder := &orderRecorder{calls: &calls}
	depIndex := db.Registry().Register(func(ids.IngredientIndex) engine.Ingredient { return recorder })

	fn := New(db.Registry(), func(db *engine.Database, key int) int { return key }, func(a, b int) bool { return a == b }, revision.High)

	dep := ids.ForKey(depIndex, ids.IdFromIndex(0))
	id := fn.idFor(1)
	dbKey := fn.dbKey(id)
	fn.storeMemo(id, &memo[int]{
		value:      1,
		durability: revision.High,
		changedAt:  revision.R1,
		verifiedAt: revision.R1,
		origin: engine.Origin{
			Kind: engine.Derived,
			Edges: []localstate.Edge{
				{Kind: localstate.Output, Dep: dep},
				{Kind: localstate.Input, Dep: dep},
			},
		},
	})

	if !fn.deepVerify(db, id, dbKey) {
		t.Fatal("deepVerify should succeed: MaybeChangedAfter is stubbed to report unchanged")
	}
	if len(calls) != 2 || calls[0] != "MarkValidatedOutput" || calls[1] != "MaybeChangedAfter" {
		t.Fatalf("call order = %v, want [MarkValidatedOutput MaybeChangedAfter]", calls)
	}
}
