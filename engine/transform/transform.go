// Package transform implements the method transformer: the pipeline that
// analyzes one continuable method and emits a restore prologue,
// per-yield-point checks, and a capture catch-clause around it, publishing
// a matching frame descriptor. It is the hardest single component in the
// system; every other engine/* package exists to feed it (engine/cfg,
// engine/stacksim, engine/yieldpoint) or to be fed by it
// (engine/descriptor).
//
// The injection pipeline proceeds as one pass of straight-line, heavily
// commented construction, building the rewritten method body field by
// field, with fatal-per-unit error handling that still lets the caller
// continue: one failure per method rather than aborting the whole
// assembly.
package transform

import (
	"fmt"

	"github.com/haldane-labs/continuum/engine/cfg"
	"github.com/haldane-labs/continuum/engine/descriptor"
	"github.com/haldane-labs/continuum/engine/ident"
	"github.com/haldane-labs/continuum/engine/ir"
	"github.com/haldane-labs/continuum/engine/stacksim"
	"github.com/haldane-labs/continuum/engine/yieldpoint"
)

// Synthetic local declared type names, used only for Disasm readability.
const (
	typeTaskContext   = "*rtcore.TaskContext"
	typeFrameRecord   = "*rtcore.FrameRecord"
	typeSuspendSignal = "*rtcore.SuspendSignal"
	typeInt           = "int"
)

// declaringAssembly is the DeclaringType name given to this package's own
// internCallee entries for the rtcore surface; their DeclaringAssembly is
// RuntimeAssembly.
const declaringAssembly = "rtcore"

func origLabel(i int) string { return fmt.Sprintf("orig%d", i) }
func ypLabel(id int) string  { return fmt.Sprintf("yp%d", id) }

// estimateInstructionCost returns the conservative positive per-checkpoint
// cost charged against a task's budget at a back-edge checkpoint. A more
// sophisticated transformer would weigh the loop body's instruction count;
// lacking that granularity here, every back-edge charges a flat,
// always-at-least-1 cost, which still lets a scheduler's budget-per-slice
// bound how many loop iterations run before a forced yield.
const estimateInstructionCost = 1

// Method transforms one continuable method body, returning the rewritten
// body and its published frame descriptor. mb is never mutated: on success
// a clone is returned; on failure mb is untouched and the method should be
// left as originally assembled by the caller — transformation is atomic
// per method.
func Method(mb *ir.MethodBody, opts yieldpoint.Options) (*ir.MethodBody, *descriptor.Descriptor, error) {
	if mb.IsAbstract() {
		return nil, nil, &TransformError{Method: mb.Name, Msg: "cannot transform a bodyless (abstract) method"}
	}

	g, err := cfg.Build(mb)
	if err != nil {
		return nil, nil, &AnalysisError{Method: mb.Name, Msg: err.Error()}
	}
	states, err := stacksim.Simulate(mb, g)
	if err != nil {
		return nil, nil, &AnalysisError{Method: mb.Name, Msg: err.Error()}
	}
	pts, err := yieldpoint.Find(mb, g, states, opts)
	if err != nil {
		return nil, nil, &AnalysisError{Method: mb.Name, Msg: err.Error()}
	}

	// A yield point statically located inside a finally region is a
	// transform-time error, not a runtime check, because resuming mid-finally
	// is out of scope entirely.
	for _, h := range mb.Handlers {
		if h.Kind != ir.Finally {
			continue
		}
		for _, p := range pts {
			if h.Covers(p.Instruction) {
				return nil, nil, &TransformError{Method: mb.Name, Msg: fmt.Sprintf(
					"yield point at instruction %d falls inside a finally region [%d,%d)", p.Instruction, h.TryStart, h.TryEnd)}
			}
		}
	}

	// (a) original_local_count is the single source of truth for every
	// subsequent slot index; captured before any synthetic local exists.
	origLocalCount := len(mb.Locals)
	token := ident.MethodToken(mb.DeclaringType, mb.Name, mb.ParamTypeNames()...)
	n := len(pts)

	out := mb.Clone()

	// (b) synthetic locals, in a fixed order.
	idxCtx := origLocalCount
	idxFrame := origLocalCount + 1
	idxState := origLocalCount + 2
	idxEx := origLocalCount + 3
	idxRecord := origLocalCount + 4
	out.Locals = append(out.Locals,
		ir.LocalSpec{Name: "ctx", Type: typeTaskContext},
		ir.LocalSpec{Name: "frame", Type: typeFrameRecord},
		ir.LocalSpec{Name: "state", Type: typeInt},
		ir.LocalSpec{Name: "ex", Type: typeSuspendSignal},
		ir.LocalSpec{Name: "record", Type: typeFrameRecord},
	)

	b := newBuilder()
	var switches []switchFixup
	call := func(name string, returnsValue bool, paramTypes ...string) int32 {
		return internCallee(out, declaringAssembly, name, returnsValue, paramTypes...)
	}

	// --- (e) restore prologue ---
	b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnCurrentContext, true)})
	b.emit(ir.Instruction{Op: ir.STLOC, Arg: int32(idxCtx)})

	b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxCtx)})
	b.emit(ir.Instruction{Op: ir.LDC, Arg: token})
	b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnChainHeadMatchesToken, true, typeTaskContext, typeInt)})
	b.emitBranch(ir.BRFALSE, "normal_entry")

	b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxCtx)})
	b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnPopChainHead, true, typeTaskContext)})
	b.emit(ir.Instruction{Op: ir.STLOC, Arg: int32(idxFrame)})

	b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxFrame)})
	b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnFrameYieldPointID, true, typeFrameRecord)})
	b.emit(ir.Instruction{Op: ir.STLOC, Arg: int32(idxState)}) // state <- frame.yield_point_id, exact index, no off-by-one

	cUnpack := call(FnUnpackLocal, true, typeFrameRecord, typeInt)
	for i := 0; i < origLocalCount; i++ {
		b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxFrame)})
		b.emit(ir.Instruction{Op: ir.LDC, Arg: int32(i)})
		b.emit(ir.Instruction{Op: ir.CALL, Arg: cUnpack})
		b.emit(ir.Instruction{Op: ir.STLOC, Arg: int32(i)})
	}

	b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxCtx)})
	b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnChainIsNil, true, typeTaskContext)})
	b.emitBranch(ir.BRFALSE, "skip_clear")
	b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxCtx)})
	b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnClearRestoring, false, typeTaskContext)})
	b.label("skip_clear")

	if n == 0 {
		// No yield point in this method could ever be a chain head's
		// target; the dispatch table would be empty, so skip straight to
		// normal entry instead of emitting a vacuous SWITCH.
		b.emitBranch(ir.BR, "normal_entry")
	} else {
		b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxState)})
		b.emit(ir.Instruction{Op: ir.LDC, Arg: int32(n)})
		b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnStateInRange, true, typeInt, typeInt)})
		b.emitBranch(ir.BRFALSE, "normal_entry")

		b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxState)})
		swIdx := len(out.SwitchTables)
		out.SwitchTables = append(out.SwitchTables, make([]int32, n))
		labels := make([]string, n)
		for _, p := range pts {
			labels[p.ID] = ypLabel(p.ID)
		}
		b.emit(ir.Instruction{Op: ir.SWITCH, Arg: int32(swIdx)})
		switches = append(switches, switchFixup{tableIndex: swIdx, labels: labels})
	}

	b.label("normal_entry")

	// --- (c) + (f): copy the original body, injecting yield checks and
	// translating every branch/switch target to the new label space. ---
	ptByPC := make(map[int]yieldpoint.Point, n)
	for _, p := range pts {
		ptByPC[p.Instruction] = p
	}

	for i, instr := range mb.Instructions {
		b.label(origLabel(i))
		if p, ok := ptByPC[i]; ok {
			b.label(ypLabel(p.ID)) // resume target for restore dispatch
			var spillLocals []int
			if p.RequiresSpill {
				depth := p.CapturedStackState.Depth
				spillLocals = make([]int, depth)
				for k := depth - 1; k >= 0; k-- { // pop top-of-stack first
					idx := len(out.Locals)
					out.Locals = append(out.Locals, ir.LocalSpec{
						Name: fmt.Sprintf("$spill%d_%d", p.ID, k),
						Type: p.CapturedStackState.ElementTypes[k],
					})
					spillLocals[k] = idx
					b.emit(ir.Instruction{Op: ir.STLOC, Arg: int32(idx)})
				}
			}

			b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnCurrentContext, true)})
			b.emit(ir.Instruction{Op: ir.STLOC, Arg: int32(idxCtx)})
			b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxCtx)})
			b.emit(ir.Instruction{Op: ir.LDC, Arg: int32(p.ID)})

			var checkCallee int32
			if opts.IncludeInstructionCounting && p.Kind == yieldpoint.BackwardBranch {
				b.emit(ir.Instruction{Op: ir.LDC, Arg: estimateInstructionCost})
				checkCallee = call(FnHandleYieldPointBudget, true, typeTaskContext, typeInt, typeInt)
			} else {
				checkCallee = call(FnHandleYieldPoint, true, typeTaskContext, typeInt)
			}
			b.emit(ir.Instruction{Op: ir.CALL, Arg: checkCallee})
			b.emit(ir.Instruction{Op: ir.STLOC, Arg: int32(idxEx)})
			b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxEx)})
			b.emit(ir.Instruction{Op: ir.THROWIFSET})

			for _, idx := range spillLocals { // reload in original (bottom-to-top) order
				b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idx)})
			}
		}

		switch instr.Op {
		case ir.BR, ir.BRTRUE, ir.BRFALSE, ir.LEAVE:
			b.emitBranch(instr.Op, origLabel(int(instr.Arg)))
		case ir.SWITCH:
			oldTbl := mb.SwitchTables[instr.Arg]
			newIdx := len(out.SwitchTables)
			out.SwitchTables = append(out.SwitchTables, make([]int32, len(oldTbl)))
			labels := make([]string, len(oldTbl))
			for j, t := range oldTbl {
				labels[j] = origLabel(int(t))
			}
			switches = append(switches, switchFixup{tableIndex: newIdx, labels: labels})
			b.emit(ir.Instruction{Op: ir.SWITCH, Arg: int32(newIdx)})
		default:
			b.emit(instr)
		}
	}

	// --- (d) capture catch-clause ---
	b.label("capture_handler")
	b.emit(ir.Instruction{Op: ir.STLOC, Arg: int32(idxEx)}) // the handler's implicit one-element stack is the caught signal

	for i := 0; i < origLocalCount; i++ {
		b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(i)})
	}
	packParamTypes := make([]string, origLocalCount)
	for i := range packParamTypes {
		packParamTypes[i] = ir.AnyType
	}
	b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnPack, true, packParamTypes...)}) // stack: [array] -- exactly, per §4.6(d)

	b.emit(ir.Instruction{Op: ir.LDC, Arg: token})
	b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxEx)})
	b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnSignalYieldPointID, true, typeSuspendSignal)})
	b.emit(ir.Instruction{Op: ir.LDNULL}) // caller is linked by FnPrependFrame below, not here
	b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnNewFrameRecord, true, ir.AnyType, typeInt, typeInt, typeFrameRecord)})
	b.emit(ir.Instruction{Op: ir.STLOC, Arg: int32(idxRecord)})

	b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxEx)})
	b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxRecord)})
	b.emit(ir.Instruction{Op: ir.CALL, Arg: call(FnPrependFrame, false, typeSuspendSignal, typeFrameRecord)})

	b.emit(ir.Instruction{Op: ir.LDLOC, Arg: int32(idxEx)})
	b.emit(ir.Instruction{Op: ir.THROW})

	if err := b.finish(out, switches); err != nil {
		return nil, nil, err
	}

	resolve := func(oldOffset int) (int, error) {
		if oldOffset >= len(mb.Instructions) {
			off, ok := b.offsetOf("capture_handler")
			if !ok {
				return 0, &TransformError{Method: mb.Name, Msg: "internal: capture_handler label missing"}
			}
			return off, nil
		}
		off, ok := b.offsetOf(origLabel(oldOffset))
		if !ok {
			return 0, &TransformError{Method: mb.Name, Msg: fmt.Sprintf("internal: unresolved original offset %d", oldOffset)}
		}
		return off, nil
	}

	newHandlers := make([]ir.Handler, 0, len(mb.Handlers)+1)
	for _, h := range mb.Handlers {
		ts, err := resolve(h.TryStart)
		if err != nil {
			return nil, nil, err
		}
		te, err := resolve(h.TryEnd)
		if err != nil {
			return nil, nil, err
		}
		hs, err := resolve(h.HandlerStart)
		if err != nil {
			return nil, nil, err
		}
		he, err := resolve(h.HandlerEnd)
		if err != nil {
			return nil, nil, err
		}
		newHandlers = append(newHandlers, ir.Handler{
			Kind: h.Kind, TryStart: ts, TryEnd: te, HandlerStart: hs, HandlerEnd: he, CaughtType: h.CaughtType,
		})
	}
	captureStart, _ := b.offsetOf("capture_handler")
	newHandlers = append(newHandlers, ir.Handler{
		Kind:         ir.Catch,
		TryStart:     0,
		TryEnd:       captureStart,
		HandlerStart: captureStart,
		HandlerEnd:   len(out.Instructions),
		CaughtType:   ir.SuspendSignalType,
	})
	out.Handlers = newHandlers

	out.MaxStack = mb.MaxStack + 6 // headroom for injected call sequences

	// --- (h) publish the frame descriptor ---
	slots := make([]descriptor.SlotSpec, origLocalCount)
	for i := 0; i < origLocalCount; i++ {
		kind := descriptor.LocalSlot
		if i < mb.NumParams {
			kind = descriptor.ArgumentSlot
		}
		slots[i] = descriptor.SlotSpec{
			Index: i, DebugName: mb.Locals[i].Name, Kind: kind,
			DeclaredType: mb.Locals[i].Type, SerializationRequired: true,
		}
	}
	yieldPointIDs := make([]int, n)
	liveAll := make([][]bool, n)
	for i, p := range pts {
		yieldPointIDs[i] = p.ID
		live := make([]bool, origLocalCount)
		for j := range live {
			live[j] = true // simplified: union-of-live simplifies to all original locals
		}
		liveAll[i] = live
	}
	desc := descriptor.New(token, mb.Name, slots, yieldPointIDs, liveAll)

	return out, desc, nil
}
