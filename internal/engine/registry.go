package engine

import (
	"sync"

	"github.com/emberdb/ember/internal/depgraph"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/revision"
)

// Registry is the arena of ingredients that make up one database (C3). It
// is built once at database construction and never shrinks; ingredients
// are addressed by their stable IngredientIndex for the life of the
// process.
type Registry struct {
	mu          sync.RWMutex
	ingredients []Ingredient
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register allocates the next IngredientIndex and asks build to construct
// the ingredient with it — ingredients commonly need to know their own
// index to stamp it into the DependencyIndex values they hand out.
func (r *Registry) Register(build func(ids.IngredientIndex) Ingredient) ids.IngredientIndex {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := ids.IngredientIndex(len(r.ingredients))
	r.ingredients = append(r.ingredients, build(idx))
	return idx
}

// Ingredient returns the ingredient registered at i. Panics if i is out of
// range, which indicates a corrupted DependencyIndex — a logic error, not
// a routine outcome.
func (r *Registry) Ingredient(i ids.IngredientIndex) Ingredient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(i) >= len(r.ingredients) {
		panic("ember: ingredient index out of range")
	}
	return r.ingredients[i]
}

// MaybeChangedAfter dispatches to the ingredient addressed by dep.
func (r *Registry) MaybeChangedAfter(db *Database, dep ids.DependencyIndex, since revision.Revision) bool {
	return r.Ingredient(dep.Ingredient).MaybeChangedAfter(db, dep, since)
}

// CycleRecoveryStrategy dispatches to the ingredient at i.
func (r *Registry) CycleRecoveryStrategy(i ids.IngredientIndex) depgraph.CycleRecoveryStrategy {
	return r.Ingredient(i).CycleRecoveryStrategy()
}

// FmtIndex renders a DatabaseKeyIndex via its owning ingredient's FmtIndex.
func (r *Registry) FmtIndex(k ids.DatabaseKeyIndex) string {
	return r.Ingredient(k.Ingredient).FmtIndex(k.Key)
}

// ResetForNewRevision walks every ingredient that opted into
// ResetOnNewRevision and invokes ResetForNewRevision on it (spec.md §4.3).
// Called exactly once per NewRevision, while the writer database holds
// exclusivity.
func (r *Registry) ResetForNewRevision(current revision.Revision) {
	r.mu.RLock()
	ingredients := make([]Ingredient, len(r.ingredients))
	copy(ingredients, r.ingredients)
	r.mu.RUnlock()

	for _, ing := range ingredients {
		if ing.ResetOnNewRevision() {
			ing.ResetForNewRevision(current)
		}
	}
}
