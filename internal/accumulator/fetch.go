package accumulator

import (
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/function"
)

// Accumulated implements spec.md §6's `q::accumulated::<A>(db, args)`: fetch
// fn(key) to bring it current, then walk its dependency tree collecting
// every value pushed to acc along the way.
func Accumulated[K comparable, V any, A any](db *engine.Database, acc *Accumulator[A], fn *function.Ingredient[K, V], key K) []A {
	fn.Fetch(db, key)
	return acc.Walk(db, fn.DatabaseKey(key))
}
