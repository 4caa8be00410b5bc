// Package clicmd implements the command-table plumbing behind cmd/contc: a
// flag-annotated Cmd struct parsed by github.com/mna/mainer, dispatching
// by lower-cased method name to a reflection-discovered command table. The
// commands are "transform" (the transform-in-place CLI surface) and
// "disasm" (a supplemental dev-tooling subcommand for inspecting an
// assembly's textual form).
package clicmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "contc"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> <args>...
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> <args>...
       %[1]s -h|--help
       %[1]s -v|--version

Transforms a continuum bytecode assembly to inject yield checks, a capture
catch-clause, and a restore prologue into every method marked continuable.

The <command> can be one of:
       transform <in> <out>      Transform the assembly at <in> (the
                                 textual IR format, see engine/ir) and
                                 write the rewritten assembly to <out>.
       disasm <in>               Print the textual disassembly of the
                                 assembly at <in> unchanged, for
                                 inspecting a transform's output.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.

Valid flag options for the <transform> command are:
       --preserve-debug-symbols  Accepted for compatibility with the
                                 external source generator's CLI surface;
                                 this IR carries no debug symbols, so the
                                 flag has no effect here.
       --backward-branches       Emit a yield point at every back-edge
                                 (default true).
       --instruction-counting    Charge an estimated instruction cost at
                                 each back-edge checkpoint (default true).
       --external-calls          Emit a yield point before every call
                                 whose callee's declaring assembly is
                                 outside --internal-assembly (default
                                 false).
       --internal-assembly <a>   Comma-separated assembly identities
                                 considered internal (trust zone) for the
                                 --external-calls option.
`, binName)
)

// Cmd is the flag-parsed, mainer-driven CLI entry point.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	PreserveDebugSymbols bool   `flag:"preserve-debug-symbols"`
	BackwardBranches     bool   `flag:"backward-branches"`
	InstructionCounting  bool   `flag:"instruction-counting"`
	ExternalCalls        bool   `flag:"external-calls"`
	InternalAssembly     string `flag:"internal-assembly"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

// SetArgs is called by mainer.Parser with the non-flag positional
// arguments.
func (c *Cmd) SetArgs(args []string) { c.args = args }

// SetFlags is called by mainer.Parser with which flags were explicitly
// set, letting Validate tell "explicitly false" apart from "default".
func (c *Cmd) SetFlags(flags map[string]bool) { c.flags = flags }

// Validate dispatches to the requested subcommand and checks its arity.
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no command specified")
	}
	if !c.flags["backward-branches"] {
		c.BackwardBranches = true
	}
	if !c.flags["instruction-counting"] {
		c.InstructionCounting = true
	}

	cmdName := c.args[0]
	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	switch cmdName {
	case "transform":
		if len(c.args[1:]) != 2 {
			return errors.New("transform: exactly two paths required: <in> <out>")
		}
	case "disasm":
		if len(c.args[1:]) != 1 {
			return errors.New("disasm: exactly one path required: <in>")
		}
	}
	return nil
}

// Main parses args, dispatches to the resolved subcommand, and returns the
// process exit code: Success (0) on success, Failure or InvalidArgs
// otherwise, non-zero for any transformation error.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false, EnvPrefix: strings.ToUpper(binName) + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", c.args[0], err)
		return mainer.Failure
	}
	return mainer.Success
}

func buildCmds(v any) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
