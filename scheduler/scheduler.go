// Package scheduler implements a single-threaded cooperative scheduler: a
// priority-weighted FIFO run queue driving the continuation runner over a
// fixed set of tasks, with lifecycle events for task-state changes.
//
// The driver loop ticks one task at a time off an explicit queue, never a
// goroutine per task; the queue itself is a plain slice used as a FIFO,
// deliberately the simplest container that satisfies the ordering rules.
package scheduler

import (
	"errors"
	"fmt"

	"github.com/haldane-labs/continuum/rtcore"
	"github.com/haldane-labs/continuum/runner"
)

// State is a task's lifecycle state.
type State uint8

const (
	Ready State = iota
	Running
	Waiting
	Suspended
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Waiting:
		return "waiting"
	case Suspended:
		return "suspended"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// runEligible reports whether a dequeued task entry should actually be
// ticked. A task moved to Waiting or removed between enqueue and dequeue is
// discarded silently rather than run.
func (s State) runEligible() bool { return s == Ready || s == Suspended }

// Task is one unit of scheduling: either a fresh entry point never yet
// started, or a previously suspended continuation waiting to be resumed.
type Task struct {
	ID       int64
	Priority int // clamped to >= 1 by AddTask

	state State

	entry        runner.EntryFunc
	continuation *rtcore.ContinuationState // non-nil once the task has suspended at least once
	ctx          *rtcore.TaskContext       // task-bound context, created lazily and reused across ticks

	Result     rtcore.Value
	Yielded    rtcore.Value
	Err        error
	ticksRun   int64 // accumulated budget actually consumed across ticks on this task's context
	yieldCount int64 // number of times this task has suspended
}

// State returns the task's current lifecycle state.
func (t *Task) State() State { return t.state }

// TicksRun returns the accumulated instruction budget actually consumed by
// this task, summed across every tick it ran on (as opposed to discarded
// stale queue entries, which consume none).
func (t *Task) TicksRun() int64 { return t.ticksRun }

// YieldCount returns the number of times this task has suspended.
func (t *Task) YieldCount() int64 { return t.yieldCount }

func clampPriority(p int) int {
	if p <= 0 {
		return 1
	}
	return p
}

// Events groups the scheduler's lifecycle callbacks. Any or all may be nil.
// Handlers run synchronously on the scheduler's own goroutine, in the
// observed order of state transitions, and must not assume they can be
// called concurrently with each other or with scheduler methods.
type Events struct {
	TaskStateChanged func(t *Task, prev, cur State)
	TaskYielded      func(t *Task, yielded rtcore.Value)
	TaskCompleted    func(t *Task, result rtcore.Value)
	TaskFailed       func(t *Task, err error)
}

// Scheduler drives a fixed registry of tasks to completion one tick at a
// time, round-robin over a FIFO queue weighted by task priority.
type Scheduler struct {
	Registry *runner.Registry
	Locals   *rtcore.Locals
	Events   Events

	budgetPerSlice int64
	tickCount      int64
	isRunning      bool
	stopRequested  bool

	tasks    []*Task
	byID     map[int64]*Task
	runQueue []*Task

	nextID int64
}

// New returns an empty scheduler with the given per-slice instruction
// budget (clamped to at least 1) and entry-point registry. locals may be
// shared with other collaborators on the same goroutine, or nil to use a
// freshly allocated one.
func New(registry *runner.Registry, locals *rtcore.Locals, budgetPerSlice int64) *Scheduler {
	if budgetPerSlice < 1 {
		budgetPerSlice = 1
	}
	if locals == nil {
		locals = rtcore.NewLocals()
	}
	return &Scheduler{
		Registry:       registry,
		Locals:         locals,
		budgetPerSlice: budgetPerSlice,
		byID:           make(map[int64]*Task),
	}
}

// TickCount returns the number of ticks executed so far.
func (s *Scheduler) TickCount() int64 { return s.tickCount }

// TaskCount returns the number of tasks currently tracked (added and not
// yet removed via RemoveTask).
func (s *Scheduler) TaskCount() int { return len(s.tasks) }

// IsRunning reports whether a call to Run is (or was, until Stop) active.
func (s *Scheduler) IsRunning() bool { return s.isRunning }

// AddTask registers a new task running entry, with priority clamped to >=
// 1. The task is appended to the task set and enqueued exactly once. A nil
// entry is rejected: the returned task's state is Failed and it is never
// enqueued.
func (s *Scheduler) AddTask(entry runner.EntryFunc, priority int) *Task {
	if entry == nil {
		s.nextID++
		t := &Task{ID: s.nextID, Priority: clampPriority(priority), state: Failed, Err: errNilEntry}
		s.tasks = append(s.tasks, t)
		s.byID[t.ID] = t
		return t
	}
	s.nextID++
	t := &Task{ID: s.nextID, Priority: clampPriority(priority), entry: entry, state: Ready}
	s.tasks = append(s.tasks, t)
	s.byID[t.ID] = t
	s.enqueue(t)
	return t
}

// RemoveTask deletes t from the task set and purges every occurrence of it
// from the run queue. Removing an unknown or already-removed task is a
// no-op.
func (s *Scheduler) RemoveTask(t *Task) {
	if t == nil {
		return
	}
	if _, ok := s.byID[t.ID]; !ok {
		return
	}
	delete(s.byID, t.ID)
	for i, tt := range s.tasks {
		if tt == t {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	s.purgeQueue(t)
}

// SuspendTask moves t from Ready/Suspended to Waiting, purging all of its
// run-queue occurrences. It is idempotent if t is already Waiting.
func (s *Scheduler) SuspendTask(t *Task) {
	if t == nil || t.state == Waiting {
		return
	}
	s.purgeQueue(t)
	s.transition(t, Waiting)
}

// WakeTask moves a Waiting task back to Suspended and appends exactly one
// run-queue entry. Waking a task that is not Waiting is a no-op.
func (s *Scheduler) WakeTask(t *Task) {
	if t == nil || t.state != Waiting {
		return
	}
	s.transition(t, Suspended)
	s.runQueue = append(s.runQueue, t)
}

func (s *Scheduler) purgeQueue(t *Task) {
	kept := s.runQueue[:0]
	for _, tt := range s.runQueue {
		if tt != t {
			kept = append(kept, tt)
		}
	}
	s.runQueue = kept
}

func (s *Scheduler) enqueue(t *Task) { s.runQueue = append(s.runQueue, t) }

func (s *Scheduler) transition(t *Task, to State) {
	prev := t.state
	t.state = to
	if s.Events.TaskStateChanged != nil {
		s.Events.TaskStateChanged(t, prev, to)
	}
}

// Tick dequeues and runs one task, returning false if the queue was empty.
// A dequeued entry that is no longer run-eligible (moved to Waiting or
// removed after it was enqueued) is discarded silently, consuming no
// budget and emitting no event, and Tick reports true (a slot of queue
// activity occurred even though nothing ran).
func (s *Scheduler) Tick() bool {
	if len(s.runQueue) == 0 {
		return false
	}
	t := s.runQueue[0]
	s.runQueue = s.runQueue[1:]
	s.tickCount++

	if !t.state.runEligible() {
		return true
	}

	s.transition(t, Running)

	if t.ctx == nil {
		t.ctx = rtcore.New()
	}
	t.ctx.ResetBudget(s.budgetPerSlice)
	if t.continuation != nil {
		t.ctx.IsRestoring = true
		t.ctx.FrameChain = t.continuation.StackHead
	}

	before := t.ctx.Budget()
	var outcome runner.Outcome
	if t.continuation != nil {
		entry, ok := s.Registry.Lookup(rootTokenOf(t.continuation))
		if !ok {
			outcome = runner.Outcome{Kind: runner.Failed, Err: fmt.Errorf("scheduler: task %d: no entry point registered for resumed continuation", t.ID)}
		} else {
			v, err := s.Locals.RunWith(t.ctx, func() (rtcore.Value, error) { return entry() })
			outcome = classify(v, err)
		}
	} else {
		v, err := s.Locals.RunWith(t.ctx, func() (rtcore.Value, error) { return t.entry() })
		outcome = classify(v, err)
	}
	t.ticksRun += before - t.ctx.Budget()

	switch outcome.Kind {
	case runner.Suspended:
		t.continuation = &outcome.State
		t.Yielded = outcome.Yielded
		t.yieldCount++
		s.transition(t, Suspended)
		if s.Events.TaskYielded != nil {
			s.Events.TaskYielded(t, outcome.Yielded)
		}
		for i := 0; i < t.Priority; i++ {
			s.enqueue(t)
		}
	case runner.Completed:
		t.Result = outcome.Result
		s.transition(t, Completed)
		if s.Events.TaskCompleted != nil {
			s.Events.TaskCompleted(t, outcome.Result)
		}
	case runner.Failed:
		t.Err = outcome.Err
		s.transition(t, Failed)
		if s.Events.TaskFailed != nil {
			s.Events.TaskFailed(t, outcome.Err)
		}
	}
	return true
}

// classify mirrors runner.runWith's outcome classification for the
// in-place RunWith call Tick makes directly (it cannot call runner.Run
// because it must reuse the task-bound context across ticks rather than
// creating a fresh one each time).
func classify(v rtcore.Value, err error) runner.Outcome {
	if sig, ok := rtcore.IsSuspendSignal(err); ok {
		return runner.Outcome{Kind: runner.Suspended, Yielded: sig.YieldedValue, State: sig.BuildContinuationState()}
	}
	if err != nil {
		return runner.Outcome{Kind: runner.Failed, Err: err}
	}
	return runner.Outcome{Kind: runner.Completed, Result: v}
}

func rootTokenOf(state *rtcore.ContinuationState) int32 {
	f := state.StackHead
	if f == nil {
		return 0
	}
	for f.Caller != nil {
		f = f.Caller
	}
	return f.MethodToken
}

// Run ticks until Stop is called or the run queue empties.
func (s *Scheduler) Run() {
	s.isRunning = true
	for s.isRunning && !s.stopRequested {
		if !s.Tick() {
			break
		}
	}
	s.isRunning = false
	s.stopRequested = false
}

// RunFor performs at most n ticks. n <= 0 is a no-op.
func (s *Scheduler) RunFor(n int) {
	if n <= 0 {
		return
	}
	s.isRunning = true
	for i := 0; i < n; i++ {
		if s.stopRequested || !s.Tick() {
			break
		}
	}
	s.isRunning = false
	s.stopRequested = false
}

// Stop requests the current (or next) Run/RunFor to return promptly. If
// called before Run, the next Run call returns without ticking.
func (s *Scheduler) Stop() {
	s.stopRequested = true
	s.isRunning = false
}

var errNilEntry = errors.New("scheduler: nil entry point")
