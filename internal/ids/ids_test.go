package ids

import "testing"

func TestDependencyIndexDatabaseKeyRoundtrip(t *testing.T) {
	dep := ForKey(IngredientIndex(3), IdFromIndex(7))
	dk := dep.DatabaseKey()
	if dk.Ingredient != IngredientIndex(3) || dk.Key.Index() != 7 {
		t.Fatalf("unexpected roundtrip: %+v", dk)
	}
}

func TestDependencyIndexDatabaseKeyPanicsForWholeTable(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for whole-table DependencyIndex")
		}
	}()
	ForTable(IngredientIndex(1)).DatabaseKey()
}

func TestIdGenerationDistinguishesRecycledSlots(t *testing.T) {
	a := IdFromIndex(5)
	b := a.WithGeneration(1)
	if a == b {
		t.Fatal("ids with different generations must not be equal")
	}
	if a.Index() != b.Index() {
		t.Fatal("WithGeneration must not change the index")
	}
}
