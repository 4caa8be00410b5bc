package runner

import (
	"errors"
	"fmt"

	"github.com/haldane-labs/continuum/rtcore"
)

// MaxChainDepth bounds the chain walk used both to find the root frame's
// method token and to detect cycles in an untrusted continuation before
// resumption begins, in bounded time with no unbounded recursion.
const MaxChainDepth = 1 << 20

// CycleError reports a cyclic frame chain detected by the runner's
// independent chain walk.
type CycleError struct{}

func (CycleError) Error() string { return "runner: cyclic frame chain detected" }

// OutcomeKind classifies the result of running or resuming an entry point.
type OutcomeKind uint8

const (
	Completed OutcomeKind = iota
	Suspended
	Failed
)

// Outcome is the result of Run, Resume, or one iteration of
// RunToCompletion.
type Outcome struct {
	Kind   OutcomeKind
	Result rtcore.Value // valid when Kind == Completed

	Yielded rtcore.Value               // valid when Kind == Suspended
	State   rtcore.ContinuationState   // valid when Kind == Suspended
	Locals  *rtcore.Locals             // the Locals this outcome's context ran on, for a caller that wants to resume on the same goroutine-confined slot

	Err error // valid when Kind == Failed
}

// Run creates a fresh task context with the default budget, installs it as
// current for the duration of entry, and classifies the result. The context
// Run creates is the one entry actually runs under: it is never silently
// replaced by an inner context, since RunWith on a fresh Locals always
// installs exactly the context it was given — a caller-supplied budget can
// never be quietly overridden by a shadow context further down the call.
func Run(locals *rtcore.Locals, entry EntryFunc) Outcome {
	ctx := rtcore.New()
	return runWith(locals, ctx, entry)
}

// RunWithBudget behaves like Run but lets the caller pick the starting
// instruction budget instead of rtcore.DefaultBudget.
func RunWithBudget(locals *rtcore.Locals, budget int64, entry EntryFunc) Outcome {
	ctx := rtcore.New()
	ctx.ResetBudget(budget)
	return runWith(locals, ctx, entry)
}

func runWith(locals *rtcore.Locals, ctx *rtcore.TaskContext, entry EntryFunc) Outcome {
	v, err := locals.RunWith(ctx, func() (rtcore.Value, error) { return entry() })
	if sig, ok := rtcore.IsSuspendSignal(err); ok {
		state := sig.BuildContinuationState()
		return Outcome{Kind: Suspended, Yielded: sig.YieldedValue, State: state, Locals: locals}
	}
	if err != nil {
		return Outcome{Kind: Failed, Err: err}
	}
	return Outcome{Kind: Completed, Result: v}
}

// Resume walks continuation to its root frame's method token, validates the
// chain is acyclic independently of any prior call to validate.Validate,
// looks up the corresponding entry point in registry, and re-invokes it
// with a context configured to restore from continuation.
func Resume(locals *rtcore.Locals, registry *Registry, continuation rtcore.ContinuationState, resumeValue rtcore.Value) Outcome {
	if registry == nil {
		return Outcome{Kind: Failed, Err: errors.New("runner: resume: nil registry")}
	}
	root, err := rootToken(continuation.StackHead)
	if err != nil {
		return Outcome{Kind: Failed, Err: err}
	}
	entry, ok := registry.Lookup(root)
	if !ok {
		return Outcome{Kind: Failed, Err: fmt.Errorf("runner: resume: no entry point registered for token %d", root)}
	}

	ctx := rtcore.New()
	ctx.IsRestoring = true
	ctx.FrameChain = continuation.StackHead
	ctx.ResumeValue = resumeValue
	return runWith(locals, ctx, entry)
}

// rootToken walks head to the outermost frame (the one with a nil Caller,
// i.e. the original entry point), using a depth-bounded walk as its cycle
// guard: a chain longer than MaxChainDepth is rejected outright, which also
// catches a cyclic chain since it can never terminate on its own.
func rootToken(head *rtcore.FrameRecord) (int32, error) {
	if head == nil {
		return 0, errors.New("runner: resume: nil continuation (empty stack)")
	}
	f := head
	for depth := 0; ; depth++ {
		if depth >= MaxChainDepth {
			return 0, fmt.Errorf("runner: resume: chain exceeds max depth %d (possible cycle): %w", MaxChainDepth, CycleError{})
		}
		if f.Caller == nil {
			return f.MethodToken, nil
		}
		f = f.Caller
	}
}

// RunToCompletion repeatedly resumes a suspended outcome, obtaining the
// next resume value from nextValue each round, until the outcome is
// Completed or Failed. It is a convenience loop over Run/Resume, not a new
// suspension mechanism.
func RunToCompletion(locals *rtcore.Locals, registry *Registry, entry EntryFunc, nextValue func() rtcore.Value) Outcome {
	outcome := Run(locals, entry)
	for outcome.Kind == Suspended {
		outcome = Resume(locals, registry, outcome.State, nextValue())
	}
	return outcome
}
