package objgraph_test

import (
	"testing"

	"github.com/haldane-labs/continuum/objgraph"
)

func TestTryRegisterNilIsIdempotentSentinel(t *testing.T) {
	tr := objgraph.New()
	first, id := tr.TryRegister(nil)
	if !first || id != objgraph.NullID {
		t.Fatalf("TryRegister(nil) = (%v, %d), want (true, %d)", first, id, objgraph.NullID)
	}
	second, id2 := tr.TryRegister(nil)
	if second {
		t.Error("second TryRegister(nil) should report isNew=false")
	}
	if id2 != objgraph.NullID {
		t.Errorf("id2 = %d, want %d", id2, objgraph.NullID)
	}
}

func TestTryRegisterPointerIdentity(t *testing.T) {
	tr := objgraph.New()
	type obj struct{ x int }
	a := &obj{x: 1}
	b := a // same pointer

	first, id1 := tr.TryRegister(a)
	if !first || id1 != 0 {
		t.Fatalf("first TryRegister = (%v, %d), want (true, 0)", first, id1)
	}
	second, id2 := tr.TryRegister(b)
	if second {
		t.Error("registering the same pointer again should report isNew=false")
	}
	if id2 != id1 {
		t.Errorf("id2 = %d, want %d (same identity)", id2, id1)
	}
}

func TestTryRegisterDistinctPointersGetDistinctIDs(t *testing.T) {
	tr := objgraph.New()
	type obj struct{ x int }
	a, b := &obj{x: 1}, &obj{x: 1} // equal value, distinct identity

	_, id1 := tr.TryRegister(a)
	_, id2 := tr.TryRegister(b)
	if id1 == id2 {
		t.Error("distinct pointers with equal contents must get distinct ids")
	}
}

func TestTryRegisterValueKindedDedupsByEquality(t *testing.T) {
	tr := objgraph.New()
	type point struct{ X, Y int }
	a := point{1, 2}
	b := point{1, 2} // distinct value, equal contents; no pointer identity to track

	first, id1 := tr.TryRegister(a)
	if !first {
		t.Fatal("first registration of a value-kinded obj should report isNew=true")
	}
	second, id2 := tr.TryRegister(b)
	if second {
		t.Error("an equal value-kinded struct should dedup against the first registration")
	}
	if id2 != id1 {
		t.Errorf("id2 = %d, want %d", id2, id1)
	}
}

func TestTryRegisterDistinctSlicesOfSameBackingArray(t *testing.T) {
	tr := objgraph.New()
	backing := []int{1, 2, 3, 4}
	s1 := backing[0:2]
	s2 := backing[0:3] // same start pointer, different length

	_, id1 := tr.TryRegister(s1)
	_, id2 := tr.TryRegister(s2)
	if id1 == id2 {
		t.Error("sub-slices of differing length must not collide despite sharing a start pointer")
	}
}

func TestIsRegisteredAndIDOf(t *testing.T) {
	tr := objgraph.New()
	type obj struct{}
	a := &obj{}

	if tr.IsRegistered(a) {
		t.Fatal("IsRegistered should be false before TryRegister")
	}
	if _, ok := tr.IDOf(a); ok {
		t.Fatal("IDOf should report false before TryRegister")
	}

	_, id := tr.TryRegister(a)
	if !tr.IsRegistered(a) {
		t.Error("IsRegistered should be true after TryRegister")
	}
	got, ok := tr.IDOf(a)
	if !ok || got != id {
		t.Errorf("IDOf = (%d, %v), want (%d, true)", got, ok, id)
	}
}

func TestIsRegisteredNilAlwaysFalse(t *testing.T) {
	tr := objgraph.New()
	tr.TryRegister(nil)
	if tr.IsRegistered(nil) {
		t.Error("IsRegistered(nil) must always report false, even after registering nil")
	}
}

func TestRegisterDeserializedRejectsNegativeID(t *testing.T) {
	tr := objgraph.New()
	if err := tr.RegisterDeserialized(-1, "x"); err == nil {
		t.Fatal("expected an error for a negative id")
	}
}

func TestRegisterDeserializedRejectsAboveCeiling(t *testing.T) {
	tr := objgraph.NewWithCeiling(10)
	if err := tr.RegisterDeserialized(11, "x"); err == nil {
		t.Fatal("expected an error for an id above the ceiling")
	}
	if err := tr.RegisterDeserialized(10, "x"); err != nil {
		t.Errorf("id == ceiling should be accepted: %v", err)
	}
}

func TestRegisterDeserializedIdempotentRebind(t *testing.T) {
	tr := objgraph.New()
	type obj struct{ x int }
	a := &obj{x: 1}

	if err := tr.RegisterDeserialized(5, a); err != nil {
		t.Fatalf("first RegisterDeserialized: %v", err)
	}
	if err := tr.RegisterDeserialized(5, a); err != nil {
		t.Errorf("re-binding id 5 to the same object should be idempotent: %v", err)
	}
}

func TestRegisterDeserializedRejectsRebindToDifferentObject(t *testing.T) {
	tr := objgraph.New()
	type obj struct{ x int }
	a, b := &obj{x: 1}, &obj{x: 2}

	if err := tr.RegisterDeserialized(5, a); err != nil {
		t.Fatalf("first RegisterDeserialized: %v", err)
	}
	if err := tr.RegisterDeserialized(5, b); err == nil {
		t.Fatal("expected an error re-binding id 5 to a different object")
	}
}

func TestRegisterDeserializedAdvancesNextID(t *testing.T) {
	tr := objgraph.New()
	if err := tr.RegisterDeserialized(5, "x"); err != nil {
		t.Fatalf("RegisterDeserialized: %v", err)
	}
	_, id := tr.TryRegister("y")
	if id != 6 {
		t.Errorf("next TryRegister id = %d, want 6 (past the deserialized ceiling so far seen)", id)
	}
}

func TestGetByIDDistinguishesUnboundFromBoundToNil(t *testing.T) {
	tr := objgraph.New()
	if _, ok := tr.GetByID(0); ok {
		t.Fatal("GetByID on a never-bound id should report false")
	}
	if err := tr.RegisterDeserialized(0, nil); err != nil {
		t.Fatalf("RegisterDeserialized(0, nil): %v", err)
	}
	obj, ok := tr.GetByID(0)
	if !ok {
		t.Fatal("GetByID on an id explicitly bound to nil should report true")
	}
	if obj != nil {
		t.Errorf("obj = %v, want nil", obj)
	}
}

func TestGetByIDNegativeAlwaysUnbound(t *testing.T) {
	tr := objgraph.New()
	if _, ok := tr.GetByID(-1); ok {
		t.Error("GetByID(-1) should always report unbound")
	}
}

func TestClearResetsTrackerState(t *testing.T) {
	tr := objgraph.New()
	type obj struct{}
	a := &obj{}
	tr.TryRegister(a)
	tr.TryRegister(nil)

	tr.Clear()

	if tr.IsRegistered(a) {
		t.Error("IsRegistered should be false after Clear")
	}
	if _, ok := tr.IDOf(nil); ok {
		t.Error("nil registration should not survive Clear")
	}
	_, id := tr.TryRegister(a)
	if id != 0 {
		t.Errorf("id after Clear = %d, want 0 (ids restart from 0)", id)
	}
}
