package transform

import "github.com/haldane-labs/continuum/engine/ir"

// builder assembles a method body out of labeled instruction fragments and
// resolves branch/switch targets to final offsets in one pass at the end.
// This gets the insertion-ordering rule right for free: every fragment
// (restore prologue, per-yield-point checks, original body, capture
// handler) is appended in forward order, the way a reader would naturally
// iterate and emit it; nothing is ever reverse-spliced. It also makes
// branch fixup a single mechanical pass instead of tracking old/new
// offsets by hand throughout rewriting.
type builder struct {
	instrs     []ir.Instruction
	labelAt    map[string]int // label -> instruction offset, filled as emitted
	branchFix  []branchFixup  // deferred Arg = offset-of(label) patches
	nextLabels []string       // labels queued to attach to the next emitted instruction
}

type branchFixup struct {
	instrIndex int
	label      string
}

// switchFixup mirrors branchFixup for a SWITCH instruction's table: every
// entry of the table named in labels must resolve to the matching block.
type switchFixup struct {
	tableIndex int
	labels     []string
}

func newBuilder() *builder {
	return &builder{labelAt: make(map[string]int)}
}

// label queues name to be attached to the next emitted instruction's
// offset. Multiple labels may queue onto the same instruction.
func (b *builder) label(name string) {
	b.nextLabels = append(b.nextLabels, name)
}

// offset returns the offset the next emitted instruction will occupy.
func (b *builder) offset() int { return len(b.instrs) }

func (b *builder) emit(in ir.Instruction) int {
	idx := len(b.instrs)
	b.instrs = append(b.instrs, in)
	for _, l := range b.nextLabels {
		b.labelAt[l] = idx
	}
	b.nextLabels = b.nextLabels[:0]
	return idx
}

// emitBranch emits a branch/LEAVE instruction whose Arg will be resolved to
// label's final offset once the whole method has been assembled.
func (b *builder) emitBranch(op ir.Opcode, label string) int {
	idx := b.emit(ir.Instruction{Op: op})
	b.branchFix = append(b.branchFix, branchFixup{instrIndex: idx, label: label})
	return idx
}

// finish resolves every deferred branch/switch target against labelAt. Any
// label referenced but never declared is an internal inconsistency (a bug
// in the transformer, not a data error), so it is a TransformError rather
// than a panic, keeping failure atomic per method.
func (b *builder) finish(mb *ir.MethodBody, switches []switchFixup) error {
	for _, f := range b.branchFix {
		off, ok := b.labelAt[f.label]
		if !ok {
			return &TransformError{Msg: "transform: unresolved branch label " + f.label}
		}
		b.instrs[f.instrIndex].Arg = int32(off)
	}
	for _, sf := range switches {
		tbl := make([]int32, len(sf.labels))
		for i, l := range sf.labels {
			off, ok := b.labelAt[l]
			if !ok {
				return &TransformError{Msg: "transform: unresolved switch label " + l}
			}
			tbl[i] = int32(off)
		}
		mb.SwitchTables[sf.tableIndex] = tbl
	}
	mb.Instructions = b.instrs
	return nil
}

// offsetOf resolves a label that must already have been emitted (used when
// patching a handler/try range boundary, which only ever reference labels
// attached to instructions emitted earlier in program order).
func (b *builder) offsetOf(label string) (int, bool) {
	off, ok := b.labelAt[label]
	return off, ok
}
