package ir

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// This file implements a human-readable/writable textual form of a
// MethodBody: a disassembler paired with an assembler that lets tests
// author method bodies without hand-building instruction slices. It is
// test/dev tooling only, exercised by this package's tests and by the
// cmd/contc "transform" and "disasm" subcommands.
//
// Format:
//
//	method:
//	  type <DeclaringType>
//	  assembly <DeclaringAssembly>
//	  name <Name>
//	  params <type> <type> ...
//	  returns <true|false>
//	  maxstack <n>
//	  continuable <true|false>
//	  locals:
//	    <name> <type>
//	  calls:
//	    <type> <assembly> <name> <returns:true|false> <paramType>,<paramType>,...
//	  switches:
//	    <target> <target> ...
//	  handlers:
//	    <catch|finally> <tryStart> <tryEnd> <handlerStart> <handlerEnd> <caughtType>
//	  code:
//	    OPNAME [arg]

// Disasm renders mb as the textual assembly format.
func Disasm(mb *MethodBody) string {
	var b strings.Builder
	fmt.Fprintf(&b, "method:\n")
	fmt.Fprintf(&b, "  type %s\n", orDash(mb.DeclaringType))
	fmt.Fprintf(&b, "  assembly %s\n", orDash(mb.DeclaringAssembly))
	fmt.Fprintf(&b, "  name %s\n", orDash(mb.Name))
	fmt.Fprintf(&b, "  params %s\n", strings.Join(mb.ParamTypes, " "))
	fmt.Fprintf(&b, "  returns %t\n", mb.ReturnsValue)
	fmt.Fprintf(&b, "  maxstack %d\n", mb.MaxStack)
	fmt.Fprintf(&b, "  continuable %t\n", mb.Continuable)
	if len(mb.Locals) > 0 {
		fmt.Fprintf(&b, "  locals:\n")
		for _, l := range mb.Locals {
			fmt.Fprintf(&b, "    %s %s\n", l.Name, l.Type)
		}
	}
	if len(mb.Calls) > 0 {
		fmt.Fprintf(&b, "  calls:\n")
		for _, c := range mb.Calls {
			fmt.Fprintf(&b, "    %s %s %s %t %s\n", c.DeclaringType, c.DeclaringAssembly, c.Name, c.ReturnsValue, strings.Join(c.ParamTypes, ","))
		}
	}
	if len(mb.SwitchTables) > 0 {
		fmt.Fprintf(&b, "  switches:\n")
		for _, t := range mb.SwitchTables {
			strs := make([]string, len(t))
			for i, v := range t {
				strs[i] = strconv.Itoa(int(v))
			}
			fmt.Fprintf(&b, "    %s\n", strings.Join(strs, " "))
		}
	}
	if len(mb.Handlers) > 0 {
		fmt.Fprintf(&b, "  handlers:\n")
		for _, h := range mb.Handlers {
			kind := "catch"
			if h.Kind == Finally {
				kind = "finally"
			}
			fmt.Fprintf(&b, "    %s %d %d %d %d %s\n", kind, h.TryStart, h.TryEnd, h.HandlerStart, h.HandlerEnd, orDash(h.CaughtType))
		}
	}
	fmt.Fprintf(&b, "  code:\n")
	for _, in := range mb.Instructions {
		if in.Op >= OpcodeArgMin {
			fmt.Fprintf(&b, "    %s %d\n", in.Op, in.Arg)
		} else {
			fmt.Fprintf(&b, "    %s\n", in.Op)
		}
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(names))
	for i, n := range names {
		if n != "" {
			m[n] = Opcode(i)
		}
	}
	return m
}()

type section int

const (
	secNone section = iota
	secLocals
	secCalls
	secSwitches
	secHandlers
	secCode
)

// Asm parses the textual assembly format produced by Disasm.
func Asm(src string) (*MethodBody, error) {
	mb := &MethodBody{}
	sc := bufio.NewScanner(bytes.NewReader([]byte(src)))
	cur := secNone
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		switch trimmed {
		case "method:":
			cur = secNone
			continue
		case "locals:":
			cur = secLocals
			continue
		case "calls:":
			cur = secCalls
			continue
		case "switches:":
			cur = secSwitches
			continue
		case "handlers:":
			cur = secHandlers
			continue
		case "code:":
			cur = secCode
			continue
		}
		fields := strings.Fields(trimmed)
		switch cur {
		case secNone:
			if err := asmHeaderLine(mb, fields); err != nil {
				return nil, err
			}
		case secLocals:
			if len(fields) != 2 {
				return nil, fmt.Errorf("ir: malformed locals line %q", trimmed)
			}
			mb.Locals = append(mb.Locals, LocalSpec{Name: fields[0], Type: fields[1]})
		case secCalls:
			if len(fields) < 4 {
				return nil, fmt.Errorf("ir: malformed calls line %q", trimmed)
			}
			ret, err := strconv.ParseBool(fields[3])
			if err != nil {
				return nil, fmt.Errorf("ir: malformed calls line %q: %w", trimmed, err)
			}
			var params []string
			if len(fields) > 4 && fields[4] != "" {
				params = strings.Split(fields[4], ",")
			}
			mb.Calls = append(mb.Calls, Callee{
				DeclaringType: fields[0], DeclaringAssembly: fields[1], Name: fields[2],
				ReturnsValue: ret, ParamTypes: params,
			})
		case secSwitches:
			tbl := make([]int32, len(fields))
			for i, f := range fields {
				n, err := strconv.Atoi(f)
				if err != nil {
					return nil, fmt.Errorf("ir: malformed switch table %q: %w", trimmed, err)
				}
				tbl[i] = int32(n)
			}
			mb.SwitchTables = append(mb.SwitchTables, tbl)
		case secHandlers:
			if len(fields) != 6 {
				return nil, fmt.Errorf("ir: malformed handler line %q", trimmed)
			}
			kind := Catch
			if fields[0] == "finally" {
				kind = Finally
			}
			nums := make([]int, 4)
			for i := 0; i < 4; i++ {
				n, err := strconv.Atoi(fields[i+1])
				if err != nil {
					return nil, fmt.Errorf("ir: malformed handler line %q: %w", trimmed, err)
				}
				nums[i] = n
			}
			caught := fields[5]
			if caught == "-" {
				caught = ""
			}
			mb.Handlers = append(mb.Handlers, Handler{
				Kind: kind, TryStart: nums[0], TryEnd: nums[1],
				HandlerStart: nums[2], HandlerEnd: nums[3], CaughtType: caught,
			})
		case secCode:
			op, ok := opcodeByName[fields[0]]
			if !ok {
				return nil, fmt.Errorf("ir: unknown opcode %q", fields[0])
			}
			in := Instruction{Op: op}
			if op >= OpcodeArgMin {
				if len(fields) != 2 {
					return nil, fmt.Errorf("ir: opcode %s requires an argument", fields[0])
				}
				n, err := strconv.Atoi(fields[1])
				if err != nil {
					return nil, fmt.Errorf("ir: malformed argument for %s: %w", fields[0], err)
				}
				in.Arg = int32(n)
			}
			mb.Instructions = append(mb.Instructions, in)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	mb.NumParams = len(mb.ParamTypes)
	return mb, nil
}

func asmHeaderLine(mb *MethodBody, fields []string) error {
	if len(fields) < 1 {
		return nil
	}
	val := ""
	if len(fields) > 1 {
		val = strings.Join(fields[1:], " ")
	}
	switch fields[0] {
	case "type":
		mb.DeclaringType = dash(val)
	case "assembly":
		mb.DeclaringAssembly = dash(val)
	case "name":
		mb.Name = dash(val)
	case "params":
		if val != "" {
			mb.ParamTypes = strings.Fields(val)
		}
	case "returns":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("ir: malformed returns value %q: %w", val, err)
		}
		mb.ReturnsValue = b
	case "maxstack":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("ir: malformed maxstack value %q: %w", val, err)
		}
		mb.MaxStack = n
	case "continuable":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("ir: malformed continuable value %q: %w", val, err)
		}
		mb.Continuable = b
	default:
		return fmt.Errorf("ir: unknown method header field %q", fields[0])
	}
	return nil
}

func dash(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// DisasmAssembly renders every method in asm as a sequence of textual
// method blocks, in Walk order, separated by a blank line. asm's
// type-nesting structure is not itself round-tripped (the CLI's transform
// surface only needs per-method bodies, grouped by declaring type); each
// method's own Continuable flag already carries everything
// engine/rewrite's eligibility check needs.
func DisasmAssembly(asm *Assembly) string {
	var b strings.Builder
	first := true
	asm.Walk(func(t *TypeDecl, mb *MethodBody, continuable bool) {
		if !first {
			b.WriteString("\n")
		}
		first = false
		b.WriteString(Disasm(mb))
	})
	return b.String()
}

// AsmAssembly parses the textual form produced by DisasmAssembly (or any
// sequence of "method:" blocks separated by blank lines) into a flat
// Assembly: one TypeDecl per distinct DeclaringType, in first-seen order,
// with no nesting. Nested-type inheritance of the "continuable" attribute
// is therefore not representable through this text form; author a nested
// Assembly directly in Go (as engine/rewrite's own tests do) when that
// matters.
func AsmAssembly(name, src string) (*Assembly, error) {
	asm := &Assembly{Name: name}
	byType := make(map[string]*TypeDecl)
	var order []string

	for _, block := range splitMethodBlocks(src) {
		mb, err := Asm(block)
		if err != nil {
			return nil, err
		}
		t, ok := byType[mb.DeclaringType]
		if !ok {
			t = &TypeDecl{Name: mb.DeclaringType}
			byType[mb.DeclaringType] = t
			order = append(order, mb.DeclaringType)
		}
		t.Methods = append(t.Methods, mb)
	}
	for _, name := range order {
		asm.Types = append(asm.Types, byType[name])
	}
	return asm, nil
}

// splitMethodBlocks splits src into one string per "method:" section.
func splitMethodBlocks(src string) []string {
	var blocks []string
	var cur strings.Builder
	started := false
	for _, line := range strings.Split(src, "\n") {
		if strings.TrimSpace(line) == "method:" {
			if started {
				blocks = append(blocks, cur.String())
				cur.Reset()
			}
			started = true
		}
		if started {
			cur.WriteString(line)
			cur.WriteString("\n")
		}
	}
	if started {
		blocks = append(blocks, cur.String())
	}
	return blocks
}
