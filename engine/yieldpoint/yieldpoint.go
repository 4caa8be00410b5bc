// Package yieldpoint produces the ordered, id-numbered list of suspension
// points for a method, from its control-flow graph and stack simulation.
package yieldpoint

import (
	"sort"

	"github.com/haldane-labs/continuum/engine/cfg"
	"github.com/haldane-labs/continuum/engine/ir"
	"github.com/haldane-labs/continuum/engine/stacksim"
)

// Kind distinguishes the two sources of a yield point.
type Kind uint8

const (
	BackwardBranch Kind = iota
	ExternalCall
)

// Point is one identified yield point.
type Point struct {
	ID                  int
	Instruction         int // instruction offset of the yield check's anchor
	Kind                Kind
	CapturedStackState  stacksim.State
	RequiresSpill       bool // true when CapturedStackState.Depth > 0
}

// Options configures which categories of yield point are produced, and the
// internal-assembly set used to classify external calls.
type Options struct {
	IncludeBackwardBranches   bool
	IncludeInstructionCounting bool
	IncludeExternalCalls      bool

	// InternalAssemblies is the configured trust zone: assembly identities
	// considered internal. A call whose callee's declaring assembly is not
	// in this set is external. Comparison is by assembly identity (the
	// DeclaringAssembly string), never by type/module name.
	InternalAssemblies map[string]bool
}

// Find produces the ordered sequence of yield points for mb.
// Instruction-budget checkpoints share the same sites as back-edges and
// contribute no additional ids; IncludeInstructionCounting only affects
// what the method transformer injects at those sites, so it is not
// separately represented here as a Point.
func Find(mb *ir.MethodBody, g *cfg.Graph, states map[int]stacksim.State, opts Options) ([]Point, error) {
	var anchors []struct {
		pc   int
		kind Kind
	}

	if opts.IncludeBackwardBranches {
		seen := make(map[int]bool)
		for _, e := range g.BackEdges {
			b := g.Blocks[e.From]
			anchorPC := b.End - 1 // the branch instruction that closes the loop
			if !seen[anchorPC] {
				seen[anchorPC] = true
				anchors = append(anchors, struct {
					pc   int
					kind Kind
				}{anchorPC, BackwardBranch})
			}
		}
	}

	if opts.IncludeExternalCalls {
		for pc, instr := range mb.Instructions {
			if instr.Op != ir.CALL {
				continue
			}
			callee := mb.Calls[instr.Arg]
			if opts.InternalAssemblies[callee.DeclaringAssembly] {
				continue
			}
			anchors = append(anchors, struct {
				pc   int
				kind Kind
			}{pc, ExternalCall})
		}
	}

	sort.Slice(anchors, func(i, j int) bool { return anchors[i].pc < anchors[j].pc })

	points := make([]Point, 0, len(anchors))
	for i, a := range anchors {
		st := states[a.pc]
		points = append(points, Point{
			ID:                 i,
			Instruction:        a.pc,
			Kind:               a.kind,
			CapturedStackState: st,
			RequiresSpill:      st.Depth > 0,
		})
	}
	return points, nil
}
