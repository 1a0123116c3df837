// Package function implements the function ingredient (C7, spec.md §4.7):
// the memoization core. It owns the memo map, the single-flight claim map,
// the optional LRU eviction list, and the fixpoint cycle engine.
package function

import (
	"sync"

	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/revision"
)

// CycleRecovery configures how an Ingredient's queries participate in a
// cycle (spec.md §4.7.7). The zero value is Panic: queries that never
// legitimately recurse should leave this unset.
type CycleRecovery[K comparable, V any] struct {
	Strategy depgraph.CycleRecoveryStrategy
	// Initial seeds the provisional value for the innermost participant
	// when a cycle is first detected.
	Initial func(key K) V
	// Iterate compares the previous provisional value to the freshly
	// computed one and decides whether to keep iterating or settle on a
	// fallback (spec.md §4.7.7 step 3).
	Iterate func(old, new V, count int) (iterate bool, fallback V)
}

// claimEntry is the single-flight cell for one key: at most one runtime
// may hold it at a time (spec.md §4.7, §5 "Sync map").
type claimEntry struct {
	holder depgraph.RuntimeId
	done   chan struct{}
}

// Ingredient is a generic memoizing function table. K is the argument
// type (or tracked-struct ids.Id for queries keyed on an entity), V the
// result type.
type Ingredient[K comparable, V any] struct {
	index      ids.IngredientIndex
	execute    func(db *engine.Database, key K) V
	equal      func(a, b V) bool
	durability revision.Durability
	cycle      CycleRecovery[K, V]
	lruCap     int

	mu      sync.RWMutex
	memos   map[uint32]*memo[V]
	argIDs  map[any]ids.Id
	argKeys map[uint32]K
	nextArg uint32
	lru     *lruList

	claimMu sync.Mutex
	claims  map[uint32]*claimEntry
}

// New registers a fresh function ingredient. equal decides backdating
// (spec.md §4.7.4); a nil equal treats every fresh execution as changed.
func New[K comparable, V any](reg *engine.Registry, execute func(db *engine.Database, key K) V, equal func(a, b V) bool, durability revision.Durability) *Ingredient[K, V] {
	var ing *Ingredient[K, V]
	reg.Register(func(idx ids.IngredientIndex) engine.Ingredient {
		ing = &Ingredient[K, V]{
			index:      idx,
			execute:    execute,
			equal:      equal,
			durability: durability,
			memos:      make(map[uint32]*memo[V]),
			argIDs:     make(map[any]ids.Id),
			argKeys:    make(map[uint32]K),
			claims:     make(map[uint32]*claimEntry),
		}
		return ing
	})
	return ing
}

// WithCycleRecovery installs fixpoint recovery for this ingredient's
// queries (spec.md §4.7.7). Returns the receiver for chaining at setup
// time.
func (ing *Ingredient[K, V]) WithCycleRecovery(cycle CycleRecovery[K, V]) *Ingredient[K, V] {
	ing.cycle = cycle
	return ing
}

// WithLRU enables recency-based eviction capped at capacity (spec.md's
// interface-level LRU hook; capacity policy itself is host-configured, see
// SPEC_FULL.md §4 "Supplemented features").
func (ing *Ingredient[K, V]) WithLRU(capacity int) *Ingredient[K, V] {
	ing.lruCap = capacity
	if capacity > 0 {
		ing.lru = newLRUList(capacity)
	}
	return ing
}

func (ing *Ingredient[K, V]) idFor(key K) ids.Id {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if id, ok := ing.argIDs[key]; ok {
		return id
	}
	id := ids.IdFromIndex(ing.nextArg)
	ing.nextArg++
	ing.argIDs[key] = id
	ing.argKeys[id.Index()] = key
	return id
}

func (ing *Ingredient[K, V]) dbKey(id ids.Id) ids.DatabaseKeyIndex {
	return ids.DatabaseKeyIndex{Ingredient: ing.index, Key: id}
}

// DatabaseKey exposes the DatabaseKeyIndex a given argument resolves to,
// without fetching it. Used by internal/accumulator to walk the dependency
// edges recorded under a query's own key.
func (ing *Ingredient[K, V]) DatabaseKey(key K) ids.DatabaseKeyIndex {
	return ing.dbKey(ing.idFor(key))
}

func (ing *Ingredient[K, V]) valueEqual(a, b V) bool {
	if ing.equal == nil {
		return false
	}
	return ing.equal(a, b)
}

func (ing *Ingredient[K, V]) strategyOf() depgraph.CycleRecoveryStrategy {
	return ing.cycle.Strategy
}

// CycleRecoveryStrategy implements engine.Ingredient.
func (ing *Ingredient[K, V]) CycleRecoveryStrategy() depgraph.CycleRecoveryStrategy {
	return ing.strategyOf()
}
