// Package demo provides hand-rendered "continuable" entry points exercising
// rtcore, runner, and scheduler end-to-end, in exactly the shape
// engine/transform's pipeline would emit for a loop with one back-edge
// yield point, without needing an interpreter for engine/ir's bytecode
// (out of scope; see DESIGN.md). These are the test-fixture equivalent of
// hand-assembling a method body one field at a time instead of parsing
// source for it.
package demo

import (
	"github.com/haldane-labs/continuum/engine/ident"
	"github.com/haldane-labs/continuum/rtcore"
	"github.com/haldane-labs/continuum/runner"
)

// CounterToken is the method token a transformed "CountTo" method would
// carry, used to key its entry point in a runner.Registry and to tag the
// frame records it captures.
var CounterToken = ident.MethodToken("continuum/demo.Counter", "CountTo", "int")

// CountTo returns an entry point counting from 0 to n-1, with one
// budget-checked yield check per iteration (back-edge checkpoint), and
// completing with n. It restores
// mid-loop exactly as a transformed method's restore prologue would: if
// the current context is mid-restore and its chain head names
// CounterToken, the loop resumes from the captured index instead of 0.
func CountTo(locals *rtcore.Locals, n int) runner.EntryFunc {
	return func() (rtcore.Value, error) {
		ctx := locals.Current()
		i := 0
		if ctx.ChainHeadMatchesToken(CounterToken) {
			frame := ctx.PopChainHead()
			i, _ = rtcore.Unpack[int](frame.Slots, 0)
			if ctx.ChainIsNil() {
				ctx.ClearRestoring()
			}
		}
		for ; i < n; i++ {
			if sig := ctx.HandleYieldPointWithBudget(0, 1); sig != nil {
				rec := rtcore.NewFrameRecord(CounterToken, 0, rtcore.Pack(i), nil)
				sig.PrependFrame(rec)
				return nil, sig
			}
		}
		return n, nil
	}
}

// ForeverToken is the method token for Forever's single yield point.
var ForeverToken = ident.MethodToken("continuum/demo.Counter", "Forever", "*int")

// Forever returns an entry point that increments *counter without bound,
// with one yield check per iteration via the budget-checked HandleYieldPoint
// variant, used by a scheduler relying on per-slice budget exhaustion
// rather than an explicit RequestYield. It never completes on its own; it
// is meant for scheduler fairness tests where tasks loop forever sharing
// one scheduler.
func Forever(locals *rtcore.Locals, counter *int) runner.EntryFunc {
	return func() (rtcore.Value, error) {
		ctx := locals.Current()
		if ctx.ChainHeadMatchesToken(ForeverToken) {
			frame := ctx.PopChainHead()
			_ = frame
			if ctx.ChainIsNil() {
				ctx.ClearRestoring()
			}
		}
		for {
			*counter++
			if sig := ctx.HandleYieldPointWithBudget(0, 1); sig != nil {
				rec := rtcore.NewFrameRecord(ForeverToken, 0, rtcore.Pack(), nil)
				sig.PrependFrame(rec)
				return nil, sig
			}
		}
	}
}
