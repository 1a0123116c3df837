package depgraph

import (
	"testing"
	"time"

	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/localstate"
)

func runtimeId(b byte) RuntimeId {
	var id RuntimeId
	id[0] = b
	return id
}

func dbKey(ingredient uint32, index uint32) ids.DatabaseKeyIndex {
	return ids.DatabaseKeyIndex{Ingredient: ids.IngredientIndex(ingredient), Key: ids.IdFromIndex(index)}
}

func noRecovery(ids.IngredientIndex) CycleRecoveryStrategy { return Panic }

func TestBlockOnCompletesWhenUnblocked(t *testing.T) {
	dg := New()
	self, to := runtimeId(1), runtimeId(2)
	k := dbKey(1, 1)

	done := make(chan WaitResult, 1)
	go func() {
		_, res := dg.BlockOn(self, k, to, nil, noRecovery)
		done <- res
	}()

	// Give BlockOn time to park before unblocking.
	time.Sleep(10 * time.Millisecond)
	dg.UnblockRuntimesBlockedOn(k, WaitResult{Kind: Completed})

	select {
	case res := <-done:
		if res.Kind != Completed {
			t.Fatalf("result.Kind = %v, want Completed", res.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("BlockOn never returned")
	}
}

func TestDependsOnDetectsDirectCycle(t *testing.T) {
	dg := New()
	a, b := runtimeId(1), runtimeId(2)
	k := dbKey(1, 1)

	dg.mu.Lock()
	dg.blocked[a] = &blockedEntry{to: b, key: k, done: make(chan WaitResult, 1)}
	dg.mu.Unlock()

	if !dg.dependsOnLocked(a, b) {
		t.Fatal("expected a to depend on b")
	}
	if dg.dependsOnLocked(b, a) {
		t.Fatal("b does not depend on a")
	}
}

func TestBlockOnResolvesCycleWithFallback(t *testing.T) {
	dg := New()
	a, b := runtimeId(1), runtimeId(2)
	keyA := dbKey(1, 1)
	keyB := dbKey(1, 2)

	aFrame := localstate.NewActiveQuery(keyA)
	bFrame := localstate.NewActiveQuery(keyB)

	// b blocks on a first (publishes its stack).
	waiting := make(chan struct{})
	bDone := make(chan WaitResult, 1)
	go func() {
		close(waiting)
		_, res := dg.BlockOn(b, keyA, a, []*localstate.ActiveQuery{bFrame}, fallbackStrategy)
		bDone <- res
	}()
	<-waiting
	time.Sleep(10 * time.Millisecond)

	// a now tries to block on b, closing the cycle a -> b -> a.
	_, res := dg.BlockOn(a, keyB, b, []*localstate.ActiveQuery{aFrame}, fallbackStrategy)
	if res.Kind != CycleDetected {
		t.Fatalf("a's BlockOn result.Kind = %v, want CycleDetected", res.Kind)
	}
	if aFrame.Cycle == nil {
		t.Fatal("expected a's frame to be marked with the detected cycle")
	}

	select {
	case bRes := <-bDone:
		if bRes.Kind != CycleDetected {
			t.Fatalf("b's BlockOn result.Kind = %v, want CycleDetected", bRes.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("b's BlockOn never returned")
	}
	if bFrame.Cycle == nil {
		t.Fatal("expected b's frame to be marked with the detected cycle")
	}
}

func fallbackStrategy(ids.IngredientIndex) CycleRecoveryStrategy { return Fallback }

func TestBlockOnPanicsWhenNoRecovery(t *testing.T) {
	dg := New()
	a, b := runtimeId(1), runtimeId(2)
	keyA := dbKey(1, 1)
	keyB := dbKey(1, 2)

	aFrame := localstate.NewActiveQuery(keyA)
	bFrame := localstate.NewActiveQuery(keyB)

	waiting := make(chan struct{})
	go func() {
		close(waiting)
		defer func() { recover() }()
		dg.BlockOn(b, keyA, a, []*localstate.ActiveQuery{bFrame}, noRecovery)
	}()
	<-waiting
	time.Sleep(10 * time.Millisecond)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic when no participant can recover")
		}
		if _, ok := r.(*CyclePanic); !ok {
			t.Fatalf("panic value = %#v, want *CyclePanic", r)
		}
	}()
	dg.BlockOn(a, keyB, b, []*localstate.ActiveQuery{aFrame}, noRecovery)
}

func TestCanonicalizeSortsAndDedups(t *testing.T) {
	in := []ids.DatabaseKeyIndex{dbKey(2, 1), dbKey(1, 5), dbKey(1, 5), dbKey(1, 2)}
	out := canonicalize(in)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	if out[0] != dbKey(1, 2) {
		t.Fatalf("out[0] = %v, want the minimum key %v", out[0], dbKey(1, 2))
	}
}
