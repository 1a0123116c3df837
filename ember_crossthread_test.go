package ember_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/function"
	"github.com/emberdb/ember/internal/input"
	"github.com/emberdb/ember/internal/revision"
	"github.com/emberdb/ember/internal/runtime"
)

// TestSingleFlightAcrossGoroutines is P4: for any key, the number of
// concurrent executor invocations is <= 1, even when many reader snapshots
// race to fetch it for the first time.
func TestSingleFlightAcrossGoroutines(t *testing.T) {
	db := engine.New()
	in := input.New[int](db.Registry())
	in.Set(db, rowID(1), 7, revision.Low)

	var concurrent atomic.Int32
	var maxConcurrent atomic.Int32
	fn := function.New(db.Registry(), func(db *engine.Database, key int) int {
		n := concurrent.Add(1)
		for {
			cur := maxConcurrent.Load()
			if n <= cur || maxConcurrent.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		concurrent.Add(-1)
		return in.Get(db, rowID(key))
	}, func(a, b int) bool { return a == b }, revision.Low)

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			reader := db.Snapshot()
			defer reader.Close()
			results[i] = fn.Fetch(reader, 1)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, maxConcurrent.Load(), "at most one goroutine should have executed the query body at a time")
	for i, got := range results {
		require.Equal(t, 7, got, "result[%d]", i)
	}
}

// TestCancellationUnwindsReadersWithoutDeadlock is P8: a writer's pending
// cancellation flag causes an in-progress reader to unwind on its next
// check rather than blocking the writer indefinitely.
func TestCancellationUnwindsReadersWithoutDeadlock(t *testing.T) {
	db := engine.New()
	in := input.New[int](db.Registry())
	in.Set(db, rowID(1), 1, revision.Low)

	started := make(chan struct{})
	unwound := make(chan any, 1)

	fn := function.New(db.Registry(), func(db *engine.Database, key int) int {
		close(started)
		for {
			db.Runtime().UnwindIfCancelled()
			time.Sleep(time.Millisecond)
		}
	}, func(a, b int) bool { return a == b }, revision.Low)

	reader := db.Snapshot()
	go func() {
		defer func() { unwound <- recover() }()
		fn.Fetch(reader, 1)
	}()

	<-started
	reader.Runtime().SetCancellationFlag()

	select {
	case r := <-unwound:
		require.Equal(t, runtime.ErrCancelled, r, "reader should unwind with the cancellation sentinel")
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not unwind after cancellation flag was set")
	}
}
