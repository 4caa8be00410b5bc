// Package cfg builds a control-flow graph over an ir.MethodBody by leader
// discovery: the standard basic-block partitioning technique for recovering
// block structure from a flat instruction stream with explicit branch
// targets and exception-handler ranges.
package cfg

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/haldane-labs/continuum/engine/ir"
)

// Block is one basic block: a maximal run of instructions with a single
// entry (the leader) and no internal branch targets.
type Block struct {
	ID    int
	Start int // instruction offset of the first instruction (inclusive)
	End   int // instruction offset one past the last instruction (exclusive)

	Succs []int // block IDs
	Preds []int // block IDs
}

// Edge is a directed control-flow edge between two blocks, identified by ID.
type Edge struct {
	From, To int
}

// Graph is the control-flow graph of one method body.
type Graph struct {
	Blocks     []*Block
	EntryBlock int // block ID of the first instruction
	BackEdges  []Edge

	offsetToBlock map[int]int // instruction offset -> owning block ID (leader-addressed only need full map for lookups)
	blockOf       []int       // instruction offset -> block ID, dense
}

// BlockAt returns the block containing instruction offset pc.
func (g *Graph) BlockAt(pc int) *Block {
	id := g.blockOf[pc]
	return g.Blocks[id]
}

// Build partitions mb's instructions into basic blocks and computes
// successor/predecessor edges and back-edges.
func Build(mb *ir.MethodBody) (*Graph, error) {
	n := len(mb.Instructions)
	if n == 0 {
		return nil, fmt.Errorf("cfg: method %s has no instructions", mb.Name)
	}

	leaders := map[int]bool{0: true}
	for i, in := range mb.Instructions {
		if in.Op.IsBranch() {
			for _, t := range branchTargets(mb, in) {
				leaders[int(t)] = true
			}
			if i+1 < n {
				leaders[i+1] = true
			}
		} else if in.Op.IsTerminator() {
			// RET/THROW/ENDFINALLY: the following instruction starts a new
			// block even though it is not itself a branch target.
			if i+1 < n {
				leaders[i+1] = true
			}
		}
	}
	for _, h := range mb.Handlers {
		leaders[h.HandlerStart] = true
	}

	offsets := make([]int, 0, len(leaders))
	for off := range leaders {
		if off >= 0 && off < n {
			offsets = append(offsets, off)
		}
	}
	slices.Sort(offsets)

	g := &Graph{blockOf: make([]int, n)}
	for i, start := range offsets {
		end := n
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		b := &Block{ID: i, Start: start, End: end}
		g.Blocks = append(g.Blocks, b)
		for pc := start; pc < end; pc++ {
			g.blockOf[pc] = i
		}
	}
	g.EntryBlock = g.blockOf[0]

	addEdge := func(from, to int) {
		fb, tb := g.Blocks[from], g.Blocks[to]
		fb.Succs = append(fb.Succs, to)
		tb.Preds = append(tb.Preds, from)
	}

	for _, b := range g.Blocks {
		last := mb.Instructions[b.End-1]
		switch {
		case last.Op.IsBranch():
			for _, t := range branchTargets(mb, last) {
				addEdge(b.ID, g.blockOf[int(t)])
			}
			if last.Op == ir.BRTRUE || last.Op == ir.BRFALSE {
				// conditional: falls through when the branch is not taken
				if b.End < n {
					addEdge(b.ID, g.blockOf[b.End])
				}
			}
		case last.Op.IsTerminator():
			// RET/THROW/ENDFINALLY/LEAVE(handled above as branch)/: no fallthrough
		default:
			if b.End < n {
				addEdge(b.ID, g.blockOf[b.End])
			}
		}
	}
	// exception edges: implicit, but the handler's first block must still
	// appear in the graph (it always does, as a leader); record a synthetic
	// edge from every block in the protected region to the handler so
	// back-edge/reachability analyses see it as a root-reachable successor.
	for _, h := range mb.Handlers {
		hBlock := g.blockOf[h.HandlerStart]
		for pc := h.TryStart; pc < h.TryEnd && pc < n; pc++ {
			from := g.blockOf[pc]
			if from != hBlock {
				addEdge(from, hBlock)
			}
		}
	}

	g.BackEdges = findBackEdges(g, mb)
	return g, nil
}

func branchTargets(mb *ir.MethodBody, in ir.Instruction) []int32 {
	switch in.Op {
	case ir.BR, ir.BRTRUE, ir.BRFALSE, ir.LEAVE:
		return []int32{in.Arg}
	case ir.SWITCH:
		return mb.SwitchTables[in.Arg]
	default:
		return nil
	}
}

// findBackEdges runs a depth-first traversal from every block not yet
// visited (so it covers exception handlers and any other root, not just the
// method entry) and classifies u->v as a back-edge when v is still on the
// DFS stack when u is explored.
func findBackEdges(g *Graph, mb *ir.MethodBody) []Edge {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]uint8, len(g.Blocks))
	var backEdges []Edge

	var visit func(u int)
	visit = func(u int) {
		color[u] = gray
		for _, v := range g.Blocks[u].Succs {
			switch color[v] {
			case white:
				visit(v)
			case gray:
				backEdges = append(backEdges, Edge{From: u, To: v})
			}
		}
		color[u] = black
	}

	// roots: method entry first (for a stable, deterministic back-edge
	// ordering), then any block not reached from it (handlers, dead code).
	if color[g.EntryBlock] == white {
		visit(g.EntryBlock)
	}
	for _, b := range g.Blocks {
		if color[b.ID] == white {
			visit(b.ID)
		}
	}
	return backEdges
}
