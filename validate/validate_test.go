package validate_test

import (
	"testing"

	"github.com/haldane-labs/continuum/engine/descriptor"
	"github.com/haldane-labs/continuum/rtcore"
	"github.com/haldane-labs/continuum/typeset"
	"github.com/haldane-labs/continuum/validate"
)

func oneYieldCatalog(token int32, numSlots int, liveAtZero int) *descriptor.Catalog {
	live := make([]bool, numSlots)
	for i := 0; i < liveAtZero && i < numSlots; i++ {
		live[i] = true
	}
	slots := make([]descriptor.SlotSpec, numSlots)
	for i := range slots {
		slots[i] = descriptor.SlotSpec{Index: i, DeclaredType: "int"}
	}
	d := descriptor.New(token, "M", slots, []int{0}, [][]bool{live})
	c := descriptor.NewCatalog()
	c.Publish(d)
	return c
}

func TestValidateNilOnCleanState(t *testing.T) {
	cat := oneYieldCatalog(1, 2, 2)
	allow := typeset.Default()
	state := rtcore.ContinuationState{
		Version:   rtcore.CurrentVersion,
		StackHead: rtcore.NewFrameRecord(1, 0, rtcore.Pack(1, 2), nil),
	}
	if err := validate.Validate(state, cat, allow, validate.Strict()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateDetectsCycle(t *testing.T) {
	cat := oneYieldCatalog(1, 1, 1)
	allow := typeset.Default()

	a := rtcore.NewFrameRecord(1, 0, rtcore.Pack(1), nil)
	b := rtcore.NewFrameRecord(1, 0, rtcore.Pack(1), a)
	a.Caller = b // a -> b -> a

	state := rtcore.ContinuationState{Version: rtcore.CurrentVersion, StackHead: a}
	err := validate.Validate(state, cat, allow, validate.Strict())
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	errs, ok := err.(*validate.Errors)
	if !ok {
		t.Fatalf("err = %T, want *validate.Errors", err)
	}
	if len(errs.Findings) == 0 {
		t.Fatal("expected at least one finding reporting the cycle")
	}
}

func TestValidateSlotCountMismatch(t *testing.T) {
	// descriptor says 2 slots live at yield point 0, but the frame only
	// carries 1 slot.
	cat := oneYieldCatalog(1, 2, 2)
	allow := typeset.Default()
	state := rtcore.ContinuationState{
		Version:   rtcore.CurrentVersion,
		StackHead: rtcore.NewFrameRecord(1, 0, rtcore.Pack(1), nil),
	}
	err := validate.Validate(state, cat, allow, validate.Strict())
	if err == nil {
		t.Fatal("expected a slot count mismatch error")
	}
}

func TestValidateVersionMismatchStrictRejectsLenientAccepts(t *testing.T) {
	cat := oneYieldCatalog(1, 1, 1)
	allow := typeset.Default()
	state := rtcore.ContinuationState{
		Version:   rtcore.CurrentVersion + 1,
		StackHead: rtcore.NewFrameRecord(1, 0, rtcore.Pack(1), nil),
	}

	if err := validate.Validate(state, cat, allow, validate.Strict()); err == nil {
		t.Fatal("expected a version mismatch error under Strict")
	}

	lenient := validate.Lenient()
	lenient.StrictVersionCheck = false
	if err := validate.Validate(state, cat, allow, lenient); err != nil {
		t.Fatalf("Validate with version check disabled: %v", err)
	}
}

func TestValidateMaxStackDepthBoundary(t *testing.T) {
	cat := oneYieldCatalog(1, 1, 1)
	allow := typeset.Default()

	// A chain of exactly 2 frames.
	caller := rtcore.NewFrameRecord(1, 0, rtcore.Pack(1), nil)
	head := rtcore.NewFrameRecord(1, 0, rtcore.Pack(1), caller)
	state := rtcore.ContinuationState{Version: rtcore.CurrentVersion, StackHead: head}

	okOpts := validate.Strict()
	okOpts.MaxStackDepth = 2
	if err := validate.Validate(state, cat, allow, okOpts); err != nil {
		t.Fatalf("Validate with MaxStackDepth == depth should pass: %v", err)
	}

	tooSmall := validate.Strict()
	tooSmall.MaxStackDepth = 1
	if err := validate.Validate(state, cat, allow, tooSmall); err == nil {
		t.Fatal("Validate with MaxStackDepth < depth should fail")
	}
}

func TestValidateNegativeYieldPointIDAlwaysChecked(t *testing.T) {
	cat := oneYieldCatalog(1, 1, 1)
	allow := typeset.Default()
	state := rtcore.ContinuationState{
		Version:   rtcore.CurrentVersion,
		StackHead: rtcore.NewFrameRecord(1, -1, rtcore.Pack(1), nil),
	}
	// even under Lenient, negative ids are always rejected.
	if err := validate.Validate(state, cat, allow, validate.Lenient()); err == nil {
		t.Fatal("expected a negative yield_point_id error even under Lenient")
	}
}

func TestValidateUnregisteredMethodRequireRegisteredMethods(t *testing.T) {
	cat := descriptor.NewCatalog() // empty: token 1 is unknown
	allow := typeset.Default()
	state := rtcore.ContinuationState{
		Version:   rtcore.CurrentVersion,
		StackHead: rtcore.NewFrameRecord(1, 0, rtcore.Pack(1), nil),
	}

	strict := validate.Strict()
	if err := validate.Validate(state, cat, allow, strict); err == nil {
		t.Fatal("expected an unregistered method token error under Strict")
	}

	lenient := validate.Lenient()
	if err := validate.Validate(state, cat, allow, lenient); err != nil {
		t.Fatalf("Validate under Lenient should tolerate an unregistered method: %v", err)
	}
}

func TestValidateSlotTypeNotAllowed(t *testing.T) {
	cat := oneYieldCatalog(1, 1, 1)
	allow := typeset.New() // nothing admitted, not even primitives
	state := rtcore.ContinuationState{
		Version:   rtcore.CurrentVersion,
		StackHead: rtcore.NewFrameRecord(1, 0, rtcore.Pack(1), nil),
	}
	if err := validate.Validate(state, cat, allow, validate.Strict()); err == nil {
		t.Fatal("expected a disallowed slot type error")
	}
}

func TestValidateYieldedValueNotAllowed(t *testing.T) {
	cat := oneYieldCatalog(1, 1, 1)
	allow := typeset.New()
	state := rtcore.ContinuationState{
		Version:      rtcore.CurrentVersion,
		StackHead:    rtcore.NewFrameRecord(1, 0, rtcore.Pack(1), nil),
		YieldedValue: 42,
	}
	if err := validate.Validate(state, cat, allow, validate.Strict()); err == nil {
		t.Fatal("expected the yielded value's type to be rejected")
	}
}

func TestFindingErrorIncludesFrameIndex(t *testing.T) {
	f := validate.Finding{FrameIndex: 3, Message: "bad"}
	if got := f.Error(); got != "frame 3: bad" {
		t.Errorf("Error() = %q, want %q", got, "frame 3: bad")
	}
}
