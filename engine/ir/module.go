package ir

// TypeDecl is one declared type within an assembly: a named grouping of
// methods and nested types, used by the rewriter (engine/rewrite) to walk
// every type in every module, recursing into nested types.
type TypeDecl struct {
	Name string

	// Continuable marks this type as carrying the configured "continuable"
	// attribute directly. A method is eligible for transformation if either
	// it or its enclosing type (transitively, through Nested) carries the
	// attribute.
	Continuable bool

	Methods []*MethodBody
	Nested  []*TypeDecl
}

// Assembly is the top-level unit the rewriter walks: a named module
// containing top-level type declarations.
type Assembly struct {
	Name  string
	Types []*TypeDecl
}

// Walk calls fn for every MethodBody in asm, recursing into nested types in
// declaration order and propagating the enclosing-type's Continuable flag:
// fn receives continuable == true when the method itself, its own type, or
// any enclosing type carries the attribute.
func (a *Assembly) Walk(fn func(t *TypeDecl, mb *MethodBody, continuable bool)) {
	var walkType func(t *TypeDecl, inherited bool)
	walkType = func(t *TypeDecl, inherited bool) {
		effective := t.Continuable || inherited
		for _, mb := range t.Methods {
			fn(t, mb, mb.Continuable || effective)
		}
		for _, nested := range t.Nested {
			walkType(nested, effective)
		}
	}
	for _, t := range a.Types {
		walkType(t, false)
	}
}

// IsAbstract reports whether mb has no body to transform (an interface or
// abstract-method declaration). Such methods are skipped by the rewriter
// regardless of their Continuable status.
func (mb *MethodBody) IsAbstract() bool {
	return len(mb.Instructions) == 0
}
