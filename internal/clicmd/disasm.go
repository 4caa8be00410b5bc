package clicmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/haldane-labs/continuum/engine/ir"
)

// Disasm implements "contc disasm <in>": parse the assembly at args[0] and
// print its textual disassembly back out unchanged, a dev-tooling
// subcommand for inspecting an assembly's parsed form via the asm/disasm
// round trip (engine/ir/asm.go).
func (c *Cmd) Disasm(_ context.Context, stdio mainer.Stdio, args []string) error {
	inPath := args[0]
	src, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", inPath, err)
	}
	asm, err := ir.AsmAssembly(inPath, string(src))
	if err != nil {
		return fmt.Errorf("parse %s: %w", inPath, err)
	}
	fmt.Fprint(stdio.Stdout, ir.DisasmAssembly(asm))
	return nil
}
