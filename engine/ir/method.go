package ir

// LocalSpec describes one local slot. Parameters occupy the first NumParams
// entries of MethodBody.Locals, parameters first.
type LocalSpec struct {
	Name string
	Type string // declared type name, resolved against typeset
}

// Callee describes one call-site target, referenced by Instruction.Arg on a
// CALL opcode through MethodBody.Calls.
type Callee struct {
	DeclaringType     string
	DeclaringAssembly string
	Name              string
	ParamTypes        []string
	ReturnsValue      bool
}

// HandlerKind distinguishes a catch region from a finally region.
type HandlerKind uint8

const (
	Catch HandlerKind = iota
	Finally
)

// Handler is one exception-handler range: [TryStart, TryEnd) is the
// protected region; HandlerStart is the first instruction of the handler,
// which C2 must treat as a leader regardless of whether any explicit branch
// targets it.
type Handler struct {
	Kind         HandlerKind
	TryStart     int
	TryEnd       int
	HandlerStart int
	HandlerEnd   int
	CaughtType   string // diagnostic; "" for Finally
}

// Covers reports whether the instruction offset pc lies within the
// handler's protected region.
func (h Handler) Covers(pc int) bool {
	return pc >= h.TryStart && pc < h.TryEnd
}

// MethodBody is the analyzable/rewritable unit: one method's bytecode, its
// locals, its call and switch tables, and its exception-handler ranges.
type MethodBody struct {
	DeclaringType     string
	DeclaringAssembly string
	Name              string
	ParamTypes        []string
	ReturnsValue      bool

	NumParams    int
	Locals       []LocalSpec
	MaxStack     int
	Instructions []Instruction
	Calls        []Callee
	SwitchTables [][]int32
	Handlers     []Handler

	// Continuable marks whether this method itself carries the configured
	// "continuable" attribute. Assembly.Walk combines it with the enclosing
	// types' flags to decide the method's eligibility for the rewriter.
	Continuable bool
}

// Clone returns a deep copy safe to mutate independently of mb.
func (mb *MethodBody) Clone() *MethodBody {
	out := *mb
	out.Locals = append([]LocalSpec(nil), mb.Locals...)
	out.Instructions = append([]Instruction(nil), mb.Instructions...)
	out.Calls = append([]Callee(nil), mb.Calls...)
	out.Handlers = append([]Handler(nil), mb.Handlers...)
	out.SwitchTables = make([][]int32, len(mb.SwitchTables))
	for i, t := range mb.SwitchTables {
		out.SwitchTables[i] = append([]int32(nil), t...)
	}
	out.ParamTypes = append([]string(nil), mb.ParamTypes...)
	return &out
}

// ParamTypeNames returns the parameter type names in declaration order, used
// to derive the method token (engine/ident).
func (mb *MethodBody) ParamTypeNames() []string {
	return mb.ParamTypes
}
