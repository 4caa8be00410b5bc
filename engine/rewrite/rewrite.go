// Package rewrite implements the assembly rewriter: it walks every type in
// a module, recurses into nested types, and invokes the method transformer
// (engine/transform) on every method annotated "continuable" either
// directly or through an enclosing type.
//
// It walks the whole assembly's declarations collecting one error per
// problem rather than aborting on the first, one failure per method.
package rewrite

import (
	"github.com/haldane-labs/continuum/engine/descriptor"
	"github.com/haldane-labs/continuum/engine/ir"
	"github.com/haldane-labs/continuum/engine/transform"
	"github.com/haldane-labs/continuum/engine/yieldpoint"
)

// Failure records one method's transformation error, keyed by a
// human-readable qualified name for diagnostics.
type Failure struct {
	TypeName   string
	MethodName string
	Err        error
}

// Result summarizes one Rewrite run: every token successfully published to
// the catalog, and every per-method failure. Ordering across methods does
// not matter, so both are reported in traversal order for determinism but
// carry no other significance.
type Result struct {
	Transformed []int32
	Failures    []Failure
}

// Rewrite walks asm and transforms every eligible method, publishing
// successful descriptors to catalog and replacing each MethodBody's
// Instructions/Locals/Handlers/Calls/SwitchTables in place with the
// transformer's output. Untagged methods, and abstract/bodyless methods,
// are left bit-for-bit unchanged. A rewriter run succeeds even if some
// methods fail to transform; see Result.Failures for per-method
// diagnostics — the run as a whole succeeds if at least one method
// transformed.
func Rewrite(asm *ir.Assembly, opts yieldpoint.Options, catalog *descriptor.Catalog) *Result {
	res := &Result{}
	asm.Walk(func(t *ir.TypeDecl, mb *ir.MethodBody, continuable bool) {
		if !continuable || mb.IsAbstract() {
			return
		}
		out, desc, err := transform.Method(mb, opts)
		if err != nil {
			res.Failures = append(res.Failures, Failure{TypeName: t.Name, MethodName: mb.Name, Err: err})
			return
		}
		*mb = *out
		catalog.Publish(desc)
		res.Transformed = append(res.Transformed, desc.MethodToken)
	})
	return res
}

// Succeeded reports whether Rewrite produced at least one transformed
// method.
func (r *Result) Succeeded() bool { return len(r.Transformed) > 0 }
