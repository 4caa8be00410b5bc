package transform

import "github.com/haldane-labs/continuum/engine/ir"

// RuntimeAssembly is the reserved pseudo-assembly identity of the rtcore
// hooks the transformer emits CALL instructions against. It is never a
// legitimate DeclaringAssembly for user code. The yield-point identifier
// runs on the original method body, before these calls are injected, so
// they are never classified as external calls; the identifier itself has
// no special case for this identity. The bytecode IR these
// calls appear in is the analyzed/rewritten artifact this repo commits to,
// mirroring an opaque JIT bytecode format; actually executing it is a host
// runtime's job and is out of scope here, so these Callee entries exist
// purely so engine/transform's output can be inspected (Disasm) and its
// structural invariants checked without needing an interpreter for this
// IR.
const RuntimeAssembly = "$rtcore"

// Builtin call names, grounded in the rtcore runtime-core surface they
// invoke.
const (
	FnCurrentContext         = "CurrentContext"
	FnChainHeadMatchesToken  = "ChainHeadMatchesToken"
	FnPopChainHead           = "PopChainHead"
	FnFrameYieldPointID      = "FrameYieldPointID"
	FnUnpackLocal            = "UnpackLocal"
	FnChainIsNil             = "ChainIsNil"
	FnClearRestoring         = "ClearRestoring"
	FnSignalYieldPointID     = "SignalYieldPointID"
	FnPack                   = "Pack"
	// FnNewFrameRecord's IR-level ParamTypes order is (slots, token,
	// yieldPointID, caller) -- slots first, deliberately, so the capture
	// catch-clause can build the slots array while the stack is otherwise
	// empty and have it sit alone on the stack the instant it is built,
	// leaving exactly the array and nothing else, then push the three
	// remaining operands on top of it. This differs from
	// rtcore.NewFrameRecord's Go parameter
	// order (token, yieldPointID, slots, caller), which hand-authored
	// transformed Go functions call directly and are free to order however
	// reads best; the two are independent renderings of the same step.
	FnNewFrameRecord         = "NewFrameRecord"
	FnPrependFrame           = "PrependFrame"
	FnHandleYieldPoint       = "HandleYieldPoint"
	FnHandleYieldPointBudget = "HandleYieldPointWithBudget"
	// FnStateInRange is a restore-prologue-only bounds check: true iff
	// 0 <= state < n. The IR's SWITCH terminates its block unconditionally
	// (engine/ir/opcode.go), so a state outside [0,n) falling through to
	// normal entry needs an explicit guard before the SWITCH rather than
	// relying on switch fallthrough.
	FnStateInRange = "StateInRange"
)

// internCallee appends a Callee table entry for one of the rtcore hooks,
// returning its index into mb.Calls for use as a CALL instruction's Arg. No
// dedup is attempted: a transformed method typically calls each hook at most
// a handful of times, so the table stays small without it.
func internCallee(mb *ir.MethodBody, declType, name string, returnsValue bool, paramTypes ...string) int32 {
	mb.Calls = append(mb.Calls, ir.Callee{
		DeclaringType:     declType,
		DeclaringAssembly: RuntimeAssembly,
		Name:              name,
		ParamTypes:        append([]string(nil), paramTypes...),
		ReturnsValue:      returnsValue,
	})
	return int32(len(mb.Calls) - 1)
}
