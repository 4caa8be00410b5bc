package transform

import "fmt"

// AnalysisError reports a CFG or stack-simulation inconsistency surfaced by
// engine/cfg or engine/stacksim: non-fatal to the rewriter run as a whole,
// fatal to this one method's transformation.
type AnalysisError struct {
	Method string
	Msg    string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("transform: analysis error in %s: %s", e.Method, e.Msg)
}

// TransformError reports an injection-site invariant violated during
// rewriting itself: also fatal per method.
type TransformError struct {
	Method string
	Msg    string
}

func (e *TransformError) Error() string {
	if e.Method == "" {
		return "transform: " + e.Msg
	}
	return fmt.Sprintf("transform: error in %s: %s", e.Method, e.Msg)
}
