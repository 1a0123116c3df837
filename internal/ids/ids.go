// Package ids defines the small, arithmetic identifiers the engine uses to
// address ingredients, entities, and dependency edges. Per spec.md §4.2 and
// §9, these are never object pointers — an arena of ingredients indexed by
// small integers, so the dependency graph and memo maps can be freely
// shared across threads without reference-cycle ownership problems.
package ids

import "fmt"

// IngredientIndex identifies one ingredient within a database.
type IngredientIndex uint32

func (i IngredientIndex) String() string {
	return fmt.Sprintf("ingredient#%d", uint32(i))
}

// Id identifies a key within one ingredient's table. The generation
// counter distinguishes a recycled slot from the instance that previously
// occupied it, e.g. after a tracked struct is deleted and a new one
// allocated into the same slot.
type Id struct {
	index      uint32
	generation uint32
}

// IdFromIndex builds an Id with generation 0. The input, interned and
// tracked-struct ingredients all build their ids this way; the interned and
// tracked-struct tables recycle freed slots without bumping the generation.
func IdFromIndex(index uint32) Id {
	return Id{index: index}
}

// WithGeneration returns a copy of id with its generation bumped to gen.
func (id Id) WithGeneration(gen uint32) Id {
	id.generation = gen
	return id
}

// Index returns the slot index, ignoring generation.
func (id Id) Index() uint32 { return id.index }

// Generation returns the recycling generation of this id.
func (id Id) Generation() uint32 { return id.generation }

func (id Id) String() string {
	if id.generation == 0 {
		return fmt.Sprintf("#%d", id.index)
	}
	return fmt.Sprintf("#%d.%d", id.index, id.generation)
}

// DatabaseKeyIndex identifies a particular invocation of a particular query,
// or a particular tracked-struct/interned instance: (IngredientIndex, Id).
type DatabaseKeyIndex struct {
	Ingredient IngredientIndex
	Key        Id
}

func (k DatabaseKeyIndex) String() string {
	return fmt.Sprintf("%s%s", k.Ingredient, k.Key)
}

// DependencyIndex identifies either one row of an ingredient's table
// (HasKey true) or the whole table (HasKey false, the "any row changed"
// read used by interned ingredients and struct-creation reads).
type DependencyIndex struct {
	Ingredient IngredientIndex
	Key        Id
	HasKey     bool
}

// ForTable builds a whole-table DependencyIndex (the Option::None case in
// spec.md §3).
func ForTable(ingredient IngredientIndex) DependencyIndex {
	return DependencyIndex{Ingredient: ingredient}
}

// ForKey builds a DependencyIndex addressing one specific row.
func ForKey(ingredient IngredientIndex, key Id) DependencyIndex {
	return DependencyIndex{Ingredient: ingredient, Key: key, HasKey: true}
}

// DatabaseKey converts this index into a DatabaseKeyIndex; only legal when
// HasKey is true.
func (d DependencyIndex) DatabaseKey() DatabaseKeyIndex {
	if !d.HasKey {
		panic("ember: DependencyIndex.DatabaseKey called on a whole-table index")
	}
	return DatabaseKeyIndex{Ingredient: d.Ingredient, Key: d.Key}
}

func (d DependencyIndex) String() string {
	if !d.HasKey {
		return fmt.Sprintf("%s[*]", d.Ingredient)
	}
	return fmt.Sprintf("%s%s", d.Ingredient, d.Key)
}
