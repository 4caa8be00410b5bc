// Package stacksim simulates the operand stack across a method body,
// tracking per-instruction depth and element types using the same
// push/pop bookkeeping a stack-machine interpreter's dispatch loop would
// do dynamically (adjusting a stack pointer per opcode), made explicit and
// static here since this package needs it at analysis time rather than at
// execution time.
package stacksim

import (
	"fmt"

	"github.com/haldane-labs/continuum/engine/cfg"
	"github.com/haldane-labs/continuum/engine/ir"
)

// State is the simulated stack state immediately before executing the
// instruction at a given offset.
type State struct {
	Depth        int
	ElementTypes []string // bottom-to-top
}

func (s State) clone() State {
	return State{Depth: s.Depth, ElementTypes: append([]string(nil), s.ElementTypes...)}
}

func equalState(a, b State) bool {
	if a.Depth != b.Depth || len(a.ElementTypes) != len(b.ElementTypes) {
		return false
	}
	for i := range a.ElementTypes {
		if a.ElementTypes[i] != b.ElementTypes[i] {
			return false
		}
	}
	return true
}

type blockInfo struct {
	state State
	seen  bool
}

func (bi *blockInfo) merge(st State, blockID int) error {
	if !bi.seen {
		bi.state = st.clone()
		bi.seen = true
		return nil
	}
	if bi.state.Depth != st.Depth {
		return fmt.Errorf("stacksim: stack depth disagreement at block %d merge (%d vs %d)", blockID, bi.state.Depth, st.Depth)
	}
	for i := range bi.state.ElementTypes {
		bi.state.ElementTypes[i] = ir.Widen(bi.state.ElementTypes[i], st.ElementTypes[i])
	}
	return nil
}

// Simulate computes the stack state at every reachable instruction offset
// of mb. Unreachable code is tolerated: it is simply absent from the
// returned map.
func Simulate(mb *ir.MethodBody, g *cfg.Graph) (map[int]State, error) {
	states := make(map[int]State, len(mb.Instructions))
	blocks := make([]blockInfo, len(g.Blocks))
	pending := make([]bool, len(g.Blocks))

	seed := func(blockID int, st State) error {
		if err := blocks[blockID].merge(st, blockID); err != nil {
			return err
		}
		pending[blockID] = true
		return nil
	}

	// Seed handler-entry blocks with the implicit one-element caught-value
	// stack (Catch) or an empty stack (Finally).
	for _, h := range mb.Handlers {
		b := g.BlockAt(h.HandlerStart)
		var st State
		if h.Kind == ir.Catch {
			ty := h.CaughtType
			if ty == "" {
				ty = ir.AnyType
			}
			st = State{Depth: 1, ElementTypes: []string{ty}}
		} else {
			st = State{Depth: 0}
		}
		if err := seed(b.ID, st); err != nil {
			return nil, err
		}
	}
	if err := seed(g.EntryBlock, State{}); err != nil {
		return nil, err
	}

	// Since merges only ever combine equal-depth states (a depth conflict is
	// a fatal error raised immediately), a block's entry state can change at
	// most once after its first visit (a widen to object is idempotent), so
	// this worklist converges even across back-edges without a full
	// dataflow fixpoint.
	changed := true
	for changed {
		changed = false
		for _, b := range g.Blocks {
			if !pending[b.ID] {
				continue
			}
			pending[b.ID] = false
			cur := blocks[b.ID].state.clone()
			for pc := b.Start; pc < b.End; pc++ {
				states[pc] = cur.clone()
				var err error
				cur, err = step(mb, pc, cur)
				if err != nil {
					return nil, err
				}
			}
			for _, s := range b.Succs {
				prev := blocks[s]
				if err := blocks[s].merge(cur, s); err != nil {
					return nil, err
				}
				if !prev.seen || !equalState(prev.state, blocks[s].state) {
					pending[s] = true
					changed = true
				}
			}
		}
	}
	return states, nil
}

// step applies the effect of the instruction at pc to in, returning the
// state after execution (i.e. the state before the next instruction).
func step(mb *ir.MethodBody, pc int, in State) (State, error) {
	instr := mb.Instructions[pc]
	pop := func(n int) error {
		if in.Depth < n {
			return fmt.Errorf("stacksim: stack underflow at pc %d (%s)", pc, instr.Op)
		}
		in.Depth -= n
		in.ElementTypes = in.ElementTypes[:in.Depth]
		return nil
	}
	push := func(ty string) {
		in.Depth++
		in.ElementTypes = append(in.ElementTypes, ty)
	}

	switch instr.Op {
	case ir.NOP:
	case ir.DUP:
		if in.Depth < 1 {
			return in, fmt.Errorf("stacksim: DUP on empty stack at pc %d", pc)
		}
		push(in.ElementTypes[in.Depth-1])
	case ir.POP:
		if err := pop(1); err != nil {
			return in, err
		}
	case ir.LDNULL:
		push(ir.AnyType)
	case ir.LDC:
		push(ir.AnyType)
	case ir.LDLOC:
		ty := ir.AnyType
		if int(instr.Arg) < len(mb.Locals) {
			ty = mb.Locals[instr.Arg].Type
		}
		push(ty)
	case ir.STLOC:
		if err := pop(1); err != nil {
			return in, err
		}
	case ir.CALL:
		callee := mb.Calls[instr.Arg]
		if err := pop(len(callee.ParamTypes)); err != nil {
			return in, err
		}
		if callee.ReturnsValue {
			push(ir.AnyType)
		}
	case ir.THROW:
		if err := pop(1); err != nil {
			return in, err
		}
	case ir.RET0:
	case ir.RET1:
		if err := pop(1); err != nil {
			return in, err
		}
	case ir.ENDFINALLY:
	case ir.THROWIFSET:
		if err := pop(1); err != nil {
			return in, err
		}
	case ir.BR, ir.LEAVE:
	case ir.BRTRUE, ir.BRFALSE:
		if err := pop(1); err != nil {
			return in, err
		}
	case ir.SWITCH:
		if err := pop(1); err != nil {
			return in, err
		}
	default:
		return in, fmt.Errorf("stacksim: unsupported opcode %s at pc %d", instr.Op, pc)
	}
	return in, nil
}

// AtYieldPoint is a convenience accessor returning the captured stack state
// immediately before the instruction at pc, used by C4 to attach
// captured_stack_state to a yield point.
func AtYieldPoint(states map[int]State, pc int) (State, bool) {
	st, ok := states[pc]
	return st, ok
}
