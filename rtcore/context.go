// Package rtcore implements the small per-task runtime linked into every
// transformed method: the task context, the suspend signal, frame records,
// continuation state, and frame-slot packing. The suspend signal is a
// distinguished result variant (*SuspendSignal, satisfying error) that
// bubbles outward by explicit early return instead of a language
// exception, and RunWith is scoped acquisition restoring the previous
// value on every exit path, the way a scoped context is restored around
// the duration of one call.
package rtcore

import (
	"sync/atomic"
)

// Value is the type of one boxed slot or yielded value. The allow-list
// (typeset) constrains what concrete types may legally appear here when a
// ContinuationState came from an untrusted source.
type Value = any

// DefaultBudget is the instruction budget a fresh TaskContext starts with
// when ResetBudget has not been called explicitly.
const DefaultBudget = 10_000

// TaskContext is the per-task execution context threaded through every
// transformed method: the yield flag, the instruction budget, restore
// state, and the frame chain being consumed during restore.
type TaskContext struct {
	yieldRequested atomic.Bool

	budget int64 // not shared across threads; plain field

	IsRestoring bool
	FrameChain  *FrameRecord
	ResumeValue Value
}

// New returns a fresh TaskContext with the default instruction budget.
func New() *TaskContext {
	c := &TaskContext{}
	c.ResetBudget(DefaultBudget)
	return c
}

// RequestYield sets the yield flag. Safe to call from any goroutine (e.g.
// an off-scheduler timer): flag visibility is relaxed-but-atomic.
func (c *TaskContext) RequestYield() { c.yieldRequested.Store(true) }

// ClearYieldRequest clears the yield flag. Idempotent.
func (c *TaskContext) ClearYieldRequest() { c.yieldRequested.Store(false) }

// YieldRequested reports the current flag value with a single atomic read.
func (c *TaskContext) YieldRequested() bool { return c.yieldRequested.Load() }

// ResetBudget sets the instruction budget to n. n <= 0 is accepted verbatim
// (a task with a non-positive budget suspends at its very next checkpoint).
func (c *TaskContext) ResetBudget(n int64) { c.budget = n }

// Budget returns the current instruction budget.
func (c *TaskContext) Budget() int64 { return c.budget }

// HandleYieldPoint implements the unconditional yield check injected at
// every yield point: if the yield flag is set, it is cleared and a
// SuspendSignal carrying id is returned; otherwise it returns nil. The
// returned signal is the transformed method's cue to begin unwind-and-
// capture via an explicit early return.
func (c *TaskContext) HandleYieldPoint(id int) *SuspendSignal {
	if c.yieldRequested.Load() {
		c.yieldRequested.Store(false)
		return NewSuspendSignal(id, nil)
	}
	return nil
}

// HandleYieldPointWithBudget implements the budget-checked yield check: cost
// (which may be zero or negative) is subtracted from the budget, then a
// SuspendSignal is raised iff the budget has reached zero or below, or the
// yield flag is set.
func (c *TaskContext) HandleYieldPointWithBudget(id int, cost int64) *SuspendSignal {
	c.budget -= cost
	if c.budget <= 0 || c.yieldRequested.Load() {
		c.yieldRequested.Store(false)
		return NewSuspendSignal(id, nil)
	}
	return nil
}

// ChainHeadMatchesToken implements the restore prologue's entry guard:
// true iff the context is currently restoring and the chain head's method
// token equals token. A transformed method's prologue falls through to
// normal entry whenever this is false.
func (c *TaskContext) ChainHeadMatchesToken(token int32) bool {
	return c.IsRestoring && c.FrameChain != nil && c.FrameChain.MethodToken == token
}

// PopChainHead pops and returns the chain head, advancing FrameChain to the
// popped frame's caller in the same step. Panics if the chain is empty;
// callers must guard with ChainHeadMatchesToken first.
func (c *TaskContext) PopChainHead() *FrameRecord {
	f := c.FrameChain
	c.FrameChain = f.Caller
	return f
}

// ChainIsNil reports whether the frame chain has been fully consumed, the
// restore prologue's cue to clear IsRestoring.
func (c *TaskContext) ChainIsNil() bool { return c.FrameChain == nil }

// ClearRestoring clears IsRestoring. Idempotent.
func (c *TaskContext) ClearRestoring() { c.IsRestoring = false }
