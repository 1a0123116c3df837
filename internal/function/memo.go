package function

import (
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/revision"
)

// memo is one function ingredient's cached result for one key (spec.md
// §4.7, the memo_map value type).
type memo[V any] struct {
	value V

	origin     engine.Origin
	durability revision.Durability
	changedAt  revision.Revision
	verifiedAt revision.Revision

	// cycleHeads is non-empty while this memo is provisional: it was
	// installed mid-fixpoint-iteration and must not be observed by any
	// caller outside the cycle (spec.md §4.7.7).
	cycleHeads     map[ids.DatabaseKeyIndex]struct{}
	iterationCount int
}

func (m *memo[V]) provisional() bool { return len(m.cycleHeads) > 0 }
