package clicmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mna/mainer"

	"github.com/haldane-labs/continuum/engine/descriptor"
	"github.com/haldane-labs/continuum/engine/ir"
	"github.com/haldane-labs/continuum/engine/rewrite"
	"github.com/haldane-labs/continuum/engine/yieldpoint"
)

// Transform implements "contc transform <in> <out>": read the assembly at
// args[0], rewrite every continuable method per c's yield-point options,
// and write the result to args[1]. Non-nil error means at least one hard
// failure occurred (I/O, parse, or zero methods transformed); per-method
// transform diagnostics are printed to stderr but do not by themselves
// fail the run.
func (c *Cmd) Transform(_ context.Context, stdio mainer.Stdio, args []string) error {
	inPath, outPath := args[0], args[1]

	src, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", inPath, err)
	}
	asm, err := ir.AsmAssembly(inPath, string(src))
	if err != nil {
		return fmt.Errorf("parse %s: %w", inPath, err)
	}

	opts := yieldpoint.Options{
		IncludeBackwardBranches:    c.BackwardBranches,
		IncludeInstructionCounting: c.InstructionCounting,
		IncludeExternalCalls:       c.ExternalCalls,
		InternalAssemblies:         parseAssemblySet(c.InternalAssembly),
	}

	catalog := descriptor.NewCatalog()
	res := rewrite.Rewrite(asm, opts, catalog)

	for _, f := range res.Failures {
		fmt.Fprintf(stdio.Stderr, "transform: %s.%s: %s\n", f.TypeName, f.MethodName, f.Err)
	}
	fmt.Fprintf(stdio.Stdout, "transformed %d method(s), %d failure(s)\n", len(res.Transformed), len(res.Failures))

	out := ir.DisasmAssembly(asm)
	if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	if !res.Succeeded() && len(asm.Types) > 0 {
		return fmt.Errorf("no method transformed (%d failure(s))", len(res.Failures))
	}
	return nil
}

func parseAssemblySet(csv string) map[string]bool {
	if csv == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, s := range strings.Split(csv, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			set[s] = true
		}
	}
	return set
}
