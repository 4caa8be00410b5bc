// Package ir defines the bytecode intermediate representation that the
// transformer (engine/transform) analyzes and rewrites. It plays the role
// that an opaque JIT bytecode format plays on the managed runtime this
// system targets: an ordered instruction stream, an operand stack, locals,
// and exception-handler ranges. No interpreter for it ships in this repo
// (see DESIGN.md); engine/ir/asm.go's assembler/disassembler exists so this
// package's tests and cmd/contc's transform and disasm subcommands can read
// and write it without one.
package ir

import "fmt"

// Opcode identifies one bytecode instruction. Opcodes below OpcodeArgMin take
// no immediate operand; the others consume the Instruction's Arg field.
type Opcode uint8

const (
	NOP Opcode = iota // - NOP -

	DUP //   x DUP x x
	POP //   x POP -

	LDNULL // - LDNULL null
	THROW  // x THROW  - (terminates block)
	RET0   // - RET0   - (terminates block; void-returning method)
	RET1   // x RET1   - (terminates block; value-returning method)

	// ENDFINALLY marks the implicit end of a finally handler: control
	// transfers back to whatever unwinding was in progress. It terminates
	// its block the same way a RET or THROW does.
	ENDFINALLY

	// THROWIFSET pops one value; if it is non-nil, it is thrown (propagated
	// as the method's in-flight exception, subject to the enclosing
	// handler table) exactly as THROW would; if nil, execution falls
	// through normally. This is the yield-check primitive: "call the poll
	// method, then throw only if it returned a signal" collapsed into one
	// instruction, matching the Go-native mapping of an exception check to
	// an explicit conditional early-return.
	THROWIFSET

	// --- opcodes with an argument must go below this line ---

	// LDC pushes its Arg as an immediate 32-bit signed literal. There is no
	// separate constant pool: a literal small enough to fit in Arg is pushed
	// directly.
	LDC   //       - LDC<literal> value
	LDLOC //       - LDLOC<local> value
	STLOC //   value STLOC<local> -

	CALL //   args... CALL<callee>  [result]   pop count and push are derived from Calls[arg]

	BR      //      - BR<addr>      -              unconditional, terminates block
	BRTRUE  //   cond BRTRUE<addr>  -              conditional, falls through otherwise
	BRFALSE //   cond BRFALSE<addr> -              conditional, falls through otherwise
	SWITCH  //  index SWITCH<table> -              multi-way branch, terminates block (no fallthrough)

	// LEAVE exits a protected (try) region unconditionally, running any
	// finally handlers that cover the jump, and terminates its block.
	LEAVE
)

// OpcodeArgMin is the first opcode that carries an Arg operand.
const OpcodeArgMin = LDC

var names = [...]string{
	NOP: "NOP", DUP: "DUP", POP: "POP", LDNULL: "LDNULL", THROW: "THROW",
	RET0: "RET0", RET1: "RET1", ENDFINALLY: "ENDFINALLY", THROWIFSET: "THROWIFSET",
	LDC: "LDC", LDLOC: "LDLOC", STLOC: "STLOC", CALL: "CALL", BR: "BR",
	BRTRUE: "BRTRUE", BRFALSE: "BRFALSE", SWITCH: "SWITCH", LEAVE: "LEAVE",
}

func (op Opcode) String() string {
	if int(op) < len(names) && names[op] != "" {
		return names[op]
	}
	return fmt.Sprintf("<invalid opcode %d>", op)
}

// IsTerminator reports whether op ends its basic block: control never falls
// through to the next instruction (unconditional branch, return, throw, or
// an unconditional protected-region exit).
func (op Opcode) IsTerminator() bool {
	switch op {
	case THROW, RET0, RET1, ENDFINALLY, BR, SWITCH, LEAVE:
		return true
	default:
		return false
	}
}

// IsBranch reports whether op carries one or more instruction-offset
// targets (conditional or unconditional).
func (op Opcode) IsBranch() bool {
	switch op {
	case BR, BRTRUE, BRFALSE, SWITCH, LEAVE:
		return true
	default:
		return false
	}
}

// Instruction is one bytecode instruction. Arg is a generic immediate
// operand whose meaning depends on Op: a local index (LDLOC/STLOC), an
// immediate literal (LDC), a call-table index (CALL), a switch-table
// index (SWITCH), or a target instruction offset (BR/BRTRUE/BRFALSE/LEAVE).
type Instruction struct {
	Op  Opcode
	Arg int32
}
