// Package validate implements the state validator: checking a decoded
// (and therefore untrusted) continuation against the frame descriptor
// catalog and the type allow-list before it is handed to the runner for
// resumption.
//
// Validate accumulates every binding error it finds across a frame chain
// in one pass rather than stopping at the first one, joining them with
// errors.Join.
package validate

import (
	"errors"
	"fmt"

	"github.com/haldane-labs/continuum/engine/descriptor"
	"github.com/haldane-labs/continuum/rtcore"
	"github.com/haldane-labs/continuum/typeset"
)

// Options configures which checks run and how strictly.
// The zero Options value turns every optional check off, but its
// MaxStackDepth of 0 makes any non-empty chain fail the depth check;
// negative yield-point ids and cycles are checked regardless of any option.
// Callers should start from Strict() or Lenient() rather than building one
// by hand.
type Options struct {
	RequireRegisteredMethods bool
	ValidateYieldPointIDs    bool
	ValidateSlotCounts       bool
	ValidateSlotTypes        bool
	MaxStackDepth            int
	StrictVersionCheck       bool
}

// Strict returns the strict preset: a fresh value every call, never a
// shared reference, so a caller mutating its copy can never affect another
// caller's preset.
func Strict() Options {
	return Options{
		RequireRegisteredMethods: true,
		ValidateYieldPointIDs:    true,
		ValidateSlotCounts:       true,
		ValidateSlotTypes:        true,
		MaxStackDepth:            1000,
		StrictVersionCheck:       true,
	}
}

// Lenient returns the lenient preset: strict, minus registered-method and
// slot-type checks. Negative yield-point ids and cycles are still rejected
// — those two checks are never disabled.
func Lenient() Options {
	o := Strict()
	o.RequireRegisteredMethods = false
	o.ValidateSlotTypes = false
	return o
}

// Finding is one validator-reported problem, identified by its position in
// the frame chain (0 = head/innermost frame).
type Finding struct {
	FrameIndex int
	Message    string
}

func (f Finding) Error() string { return fmt.Sprintf("frame %d: %s", f.FrameIndex, f.Message) }

// Errors collects every finding from one Validate call, accumulated
// rather than fail-fast so a single pass surfaces every problem.
type Errors struct {
	Findings []Finding
}

func (e *Errors) Error() string {
	errs := make([]error, len(e.Findings))
	for i, f := range e.Findings {
		errs[i] = f
	}
	return errors.Join(errs...).Error()
}

// CycleError reports a frame record revisited while walking the chain.
type CycleError struct{ FrameIndex int }

func (e CycleError) Error() string {
	return fmt.Sprintf("frame %d: cyclic frame chain (frame record revisited)", e.FrameIndex)
}

// Validate walks state's frame chain from the head and checks each frame
// against catalog and allow under opts: version, method token, yield-point
// id, slot count, slot types, stack depth, and cycle detection per frame,
// plus the top-level version and yielded-value checks. Returns nil if no
// problems were found, or a non-nil *Errors otherwise.
func Validate(state rtcore.ContinuationState, catalog *descriptor.Catalog, allow *typeset.Registry, opts Options) error {
	var findings []Finding

	if opts.StrictVersionCheck && state.Version != rtcore.CurrentVersion {
		findings = append(findings, Finding{0, fmt.Sprintf("version mismatch: state has version %d, expected %d", state.Version, rtcore.CurrentVersion)})
	}

	visited := make(map[*rtcore.FrameRecord]bool)
	depth := 0
	idx := 0
	for f := state.StackHead; f != nil; f = f.Caller {
		if visited[f] {
			findings = append(findings, Finding{idx, CycleError{idx}.Error()})
			break
		}
		visited[f] = true

		depth++
		if depth > opts.MaxStackDepth {
			findings = append(findings, Finding{idx, fmt.Sprintf("stack depth exceeds max_stack_depth %d", opts.MaxStackDepth)})
			break
		}

		if f.YieldPointID < 0 {
			findings = append(findings, Finding{idx, fmt.Sprintf("negative yield_point_id %d", f.YieldPointID)})
		}

		desc, ok := catalog.Lookup(f.MethodToken)
		if !ok {
			if opts.RequireRegisteredMethods {
				findings = append(findings, Finding{idx, fmt.Sprintf("unregistered method token %d", f.MethodToken)})
			}
			idx++
			continue
		}

		if f.YieldPointID >= 0 {
			if opts.ValidateYieldPointIDs && !desc.HasYieldPoint(f.YieldPointID) {
				findings = append(findings, Finding{idx, fmt.Sprintf("yield_point_id %d out of range [0,%d) for method %d", f.YieldPointID, desc.NumYieldPoints(), f.MethodToken)})
			} else if opts.ValidateSlotCounts && desc.HasYieldPoint(f.YieldPointID) {
				live := desc.LiveCountAt(f.YieldPointID)
				if len(f.Slots) < live {
					findings = append(findings, Finding{idx, fmt.Sprintf("slot count mismatch: have %d slots, need >= %d live", len(f.Slots), live)})
				}
			}
		}

		if opts.ValidateSlotTypes {
			for si, v := range f.Slots {
				if v != nil && !allow.Allowed(v) {
					findings = append(findings, Finding{idx, fmt.Sprintf("slot %d: type %T is not in the allow-list", si, v)})
				}
			}
		}

		idx++
	}

	if opts.StrictVersionCheck && state.YieldedValue != nil && !allow.Allowed(state.YieldedValue) {
		findings = append(findings, Finding{0, fmt.Sprintf("yielded value: type %T is not in the allow-list", state.YieldedValue)})
	}

	if len(findings) == 0 {
		return nil
	}
	return &Errors{Findings: findings}
}
