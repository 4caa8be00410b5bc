package yieldpoint_test

import (
	"testing"

	"github.com/haldane-labs/continuum/engine/cfg"
	"github.com/haldane-labs/continuum/engine/ir"
	"github.com/haldane-labs/continuum/engine/stacksim"
	"github.com/haldane-labs/continuum/engine/yieldpoint"
)

func analyze(t *testing.T, mb *ir.MethodBody) (*cfg.Graph, map[int]stacksim.State) {
	t.Helper()
	g, err := cfg.Build(mb)
	if err != nil {
		t.Fatalf("cfg.Build: %v", err)
	}
	states, err := stacksim.Simulate(mb, g)
	if err != nil {
		t.Fatalf("stacksim.Simulate: %v", err)
	}
	return g, states
}

func loopBody() *ir.MethodBody {
	return &ir.MethodBody{
		Name: "Loop",
		Instructions: []ir.Instruction{
			{Op: ir.LDC},
			{Op: ir.BRTRUE, Arg: 0},
			{Op: ir.RET0},
		},
	}
}

func TestFindBackwardBranchesDisabledByDefault(t *testing.T) {
	mb := loopBody()
	g, states := analyze(t, mb)
	points, err := yieldpoint.Find(mb, g, states, yieldpoint.Options{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("len(points) = %d, want 0 when no category is enabled", len(points))
	}
}

func TestFindBackwardBranchProducesOnePoint(t *testing.T) {
	mb := loopBody()
	g, states := analyze(t, mb)
	points, err := yieldpoint.Find(mb, g, states, yieldpoint.Options{IncludeBackwardBranches: true})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("len(points) = %d, want 1", len(points))
	}
	if points[0].Kind != yieldpoint.BackwardBranch {
		t.Errorf("Kind = %v, want BackwardBranch", points[0].Kind)
	}
	if points[0].ID != 0 {
		t.Errorf("ID = %d, want 0 (first yield point)", points[0].ID)
	}
}

func TestFindIDsAreOrderedByInstructionOffset(t *testing.T) {
	// Two independent loops at different offsets: ids must come out in
	// ascending instruction-offset order, not encounter order.
	mb := &ir.MethodBody{
		Name: "TwoLoops",
		Instructions: []ir.Instruction{
			{Op: ir.LDC},            // 0
			{Op: ir.BRTRUE, Arg: 0}, // 1: back-edge to 0
			{Op: ir.LDC},            // 2
			{Op: ir.BRTRUE, Arg: 2}, // 3: back-edge to 2
			{Op: ir.RET0},           // 4
		},
	}
	g, states := analyze(t, mb)
	points, err := yieldpoint.Find(mb, g, states, yieldpoint.Options{IncludeBackwardBranches: true})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	if points[0].Instruction >= points[1].Instruction {
		t.Errorf("points not ordered by instruction offset: %d then %d", points[0].Instruction, points[1].Instruction)
	}
	if points[0].ID != 0 || points[1].ID != 1 {
		t.Errorf("ids = %d,%d, want 0,1", points[0].ID, points[1].ID)
	}
}

func TestFindExternalCallClassification(t *testing.T) {
	mb := &ir.MethodBody{
		Name:              "Caller",
		DeclaringAssembly: "app",
		Instructions: []ir.Instruction{
			{Op: ir.CALL, Arg: 0}, // internal
			{Op: ir.CALL, Arg: 1}, // external
			{Op: ir.RET0},
		},
		Calls: []ir.Callee{
			{Name: "Internal", DeclaringAssembly: "app"},
			{Name: "External", DeclaringAssembly: "thirdparty"},
		},
	}
	g, states := analyze(t, mb)
	points, err := yieldpoint.Find(mb, g, states, yieldpoint.Options{
		IncludeExternalCalls: true,
		InternalAssemblies:   map[string]bool{"app": true},
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("len(points) = %d, want 1 (only the external call)", len(points))
	}
	if points[0].Instruction != 1 {
		t.Errorf("Instruction = %d, want 1 (the external CALL)", points[0].Instruction)
	}
	if points[0].Kind != yieldpoint.ExternalCall {
		t.Errorf("Kind = %v, want ExternalCall", points[0].Kind)
	}
}

func TestFindRequiresSpillReflectsCapturedDepth(t *testing.T) {
	// A back-edge whose captured stack state is non-empty must set
	// RequiresSpill.
	mb := &ir.MethodBody{
		Name:   "SpillingLoop",
		Locals: []ir.LocalSpec{{Name: "acc", Type: "int"}},
		Instructions: []ir.Instruction{
			{Op: ir.LDLOC, Arg: 0},  // 0: leaves a value live across the branch
			{Op: ir.BRTRUE, Arg: 0}, // 1: back-edge; pops the cond, but per the
			// simplified model here the anchor is this branch instruction
			// itself, whose captured state is measured *before* it executes.
			{Op: ir.RET0}, // 2
		},
	}
	g, states := analyze(t, mb)
	points, err := yieldpoint.Find(mb, g, states, yieldpoint.Options{IncludeBackwardBranches: true})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("len(points) = %d, want 1", len(points))
	}
	if !points[0].RequiresSpill {
		t.Error("RequiresSpill = false, want true: the branch's captured stack state has depth 1")
	}
}
