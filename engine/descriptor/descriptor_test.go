package descriptor_test

import (
	"testing"

	"github.com/haldane-labs/continuum/engine/descriptor"
)

func sampleDescriptor() *descriptor.Descriptor {
	slots := []descriptor.SlotSpec{
		{Index: 0, DebugName: "i", Kind: descriptor.LocalSlot, DeclaredType: "int"},
		{Index: 1, DebugName: "acc", Kind: descriptor.LocalSlot, DeclaredType: "int"},
	}
	yieldIDs := []int{0, 1}
	live := [][]bool{
		{true, false},
		{true, true},
	}
	return descriptor.New(42, "Loop.Run", slots, yieldIDs, live)
}

func TestNewCopiesInputSlices(t *testing.T) {
	slots := []descriptor.SlotSpec{{Index: 0, DebugName: "x"}}
	yieldIDs := []int{0}
	live := [][]bool{{true}}

	d := descriptor.New(1, "M", slots, yieldIDs, live)

	slots[0].DebugName = "mutated"
	yieldIDs[0] = 99
	live[0][0] = false

	got := d.Slots()
	if got[0].DebugName != "x" {
		t.Errorf("Slots()[0].DebugName = %q, want unaffected %q", got[0].DebugName, "x")
	}
	if ids := d.YieldPointIDs(); ids[0] != 0 {
		t.Errorf("YieldPointIDs()[0] = %d, want unaffected 0", ids[0])
	}
	if d.LiveCountAt(0) != 1 {
		t.Errorf("LiveCountAt(0) = %d, want unaffected 1", d.LiveCountAt(0))
	}
}

func TestSlotsReturnsDefensiveCopy(t *testing.T) {
	d := sampleDescriptor()
	got := d.Slots()
	got[0].DebugName = "mutated"
	if d.Slots()[0].DebugName == "mutated" {
		t.Error("mutating the result of Slots() affected the descriptor's internal state")
	}
}

func TestNumSlotsAndNumYieldPoints(t *testing.T) {
	d := sampleDescriptor()
	if d.NumSlots() != 2 {
		t.Errorf("NumSlots() = %d, want 2", d.NumSlots())
	}
	if d.NumYieldPoints() != 2 {
		t.Errorf("NumYieldPoints() = %d, want 2", d.NumYieldPoints())
	}
}

func TestLiveCountAt(t *testing.T) {
	d := sampleDescriptor()
	if got := d.LiveCountAt(0); got != 1 {
		t.Errorf("LiveCountAt(0) = %d, want 1", got)
	}
	if got := d.LiveCountAt(1); got != 2 {
		t.Errorf("LiveCountAt(1) = %d, want 2", got)
	}
	if got := d.LiveCountAt(99); got != -1 {
		t.Errorf("LiveCountAt(99) = %d, want -1 for an unknown yield point", got)
	}
}

func TestHasYieldPoint(t *testing.T) {
	d := sampleDescriptor()
	if !d.HasYieldPoint(0) || !d.HasYieldPoint(1) {
		t.Error("HasYieldPoint false for a valid id")
	}
	if d.HasYieldPoint(-1) || d.HasYieldPoint(2) {
		t.Error("HasYieldPoint true for an out-of-range id")
	}
}

func TestCatalogPublishLookupReplace(t *testing.T) {
	c := descriptor.NewCatalog()
	if _, ok := c.Lookup(42); ok {
		t.Fatal("Lookup on empty catalog returned ok=true")
	}

	d := sampleDescriptor()
	c.Publish(d)
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	got, ok := c.Lookup(42)
	if !ok || got != d {
		t.Fatalf("Lookup(42) = (%v, %v), want (%v, true)", got, ok, d)
	}

	replacement := descriptor.New(42, "Loop.Run.v2", nil, nil, nil)
	c.Publish(replacement)
	if c.Len() != 1 {
		t.Fatalf("Len() after replace = %d, want still 1", c.Len())
	}
	got, _ = c.Lookup(42)
	if got != replacement {
		t.Error("Publish of an existing token did not replace the prior descriptor")
	}
}
