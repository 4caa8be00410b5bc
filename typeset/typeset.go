// Package typeset implements the type allow-list and alias resolver: the
// transitively closed set of types that may legally appear as a captured
// slot value or a yielded value, and the short-alias<->type bijection used
// by diagnostics and by collaborators that need to name a type in the
// continuation byte stream's logical schema.
//
// A name<->binding table is built once and read many times, with one Go
// type standing in for each admitted value kind; golang.org/x/exp/maps
// backs the key extraction for the alias table (Aliases).
package typeset

import (
	"reflect"

	"golang.org/x/exp/maps"
)

// Kind classifies one admitted type.
type Kind uint8

const (
	KindPrimitive Kind = iota
	KindValueType
	KindEnum
	KindArray
	KindNullable
	KindRegistered
)

// GUID, TimeSpan, and DateOffset stand in for the managed runtime's common
// value types: no UUID/decimal library is wired in, so these are plain Go
// value types rather than a fabricated dependency (see DESIGN.md).
type GUID [16]byte

// TimeSpan mirrors the managed runtime's duration value type.
type TimeSpan int64 // nanoseconds, matching time.Duration's representation

// DateOffset pairs a Unix-epoch nanosecond timestamp with a UTC-offset
// duration, standing in for the managed runtime's "date with offset" type.
type DateOffset struct {
	UnixNano int64
	OffsetNS int64
}

// Decimal is a fixed-point decimal represented as unscaled*10^-scale,
// standing in for the managed runtime's arbitrary-precision decimal.
type Decimal struct {
	Unscaled int64
	Scale    int32
}

type builtin struct {
	typ   reflect.Type
	alias string
	kind  Kind
}

func typeOf[T any]() reflect.Type { var v T; return reflect.TypeOf(v) }

// Date is its own named type (rather than a bare int64) so that "date" gets
// its own reflect.Type distinct from "long"'s.
type Date int64 // Unix-epoch nanoseconds; the managed runtime's "date" value type

// Char is its own named type (rather than a bare rune, which Go defines as
// int32) so that "char" gets its own reflect.Type distinct from "int"'s.
type Char rune

var builtins = []builtin{
	{typeOf[int8](), "sbyte", KindPrimitive},
	{typeOf[uint8](), "byte", KindPrimitive},
	{typeOf[int16](), "short", KindPrimitive},
	{typeOf[uint16](), "ushort", KindPrimitive},
	{typeOf[int32](), "int", KindPrimitive},
	{typeOf[uint32](), "uint", KindPrimitive},
	{typeOf[int64](), "long", KindPrimitive},
	{typeOf[uint64](), "ulong", KindPrimitive},
	{typeOf[float32](), "float", KindPrimitive},
	{typeOf[float64](), "double", KindPrimitive},
	{typeOf[bool](), "bool", KindPrimitive},
	{typeOf[Char](), "char", KindPrimitive},
	{typeOf[string](), "string", KindPrimitive},
	{typeOf[Decimal](), "decimal", KindValueType},
	{typeOf[Date](), "date", KindValueType},
	{typeOf[TimeSpan](), "timespan", KindValueType},
	{typeOf[GUID](), "guid", KindValueType},
	{typeOf[DateOffset](), "dateoffset", KindValueType},
}

// Registry holds the admitted primitive/value-type set, the alias
// bijection, registered types (enums and explicitly allow-listed types),
// and a chain of custom resolver functions. Populated once via Default or
// New, then additive-only: registration never removes a previously
// admitted type, matching the allow-list's write-once/read-many
// discipline.
type Registry struct {
	aliasToType map[string]reflect.Type
	typeToAlias map[reflect.Type]string
	typeToKind  map[reflect.Type]Kind

	registeredNames map[string]reflect.Type
	resolvers       []func(name string) (reflect.Type, bool)
}

// New returns an empty registry with no admitted types at all, not even the
// primitives — for callers that want to build their own allow-list from
// scratch. Most callers want Default.
func New() *Registry {
	return &Registry{
		aliasToType:     make(map[string]reflect.Type),
		typeToAlias:     make(map[reflect.Type]string),
		typeToKind:      make(map[reflect.Type]Kind),
		registeredNames: make(map[string]reflect.Type),
	}
}

// Default returns a registry preloaded with the built-in primitives, the
// common value types, and the documented short aliases.
func Default() *Registry {
	r := New()
	for _, b := range builtins {
		r.aliasToType[b.alias] = b.typ
		r.typeToAlias[b.typ] = b.alias
		r.typeToKind[b.typ] = b.kind
	}
	return r
}

// RegisterType explicitly admits t (and, transitively, arrays of t and
// nullable wrappers around t) to the allow-list.
func (r *Registry) RegisterType(t reflect.Type) {
	r.registeredNames[t.String()] = t
	if _, ok := r.typeToKind[t]; !ok {
		r.typeToKind[t] = KindRegistered
	}
}

// RegisterEnum admits t as an enumeration type. Any named integer type may
// be registered this way; Continuum does not attempt to validate that t's
// underlying kind is actually integral, mirroring the managed runtime's own
// permissive notion of "enum" (any type decorated as one).
func (r *Registry) RegisterEnum(t reflect.Type) {
	r.registeredNames[t.String()] = t
	r.typeToKind[t] = KindEnum
}

// RegisterAlias additionally binds alias to t, maintaining the
// alias<->type bijection: alias now resolves to t, and NameOf(t) now
// renders alias (replacing any prior alias for t).
func (r *Registry) RegisterAlias(alias string, t reflect.Type) {
	r.aliasToType[alias] = t
	r.typeToAlias[t] = alias
	if _, ok := r.typeToKind[t]; !ok {
		r.typeToKind[t] = KindRegistered
	}
}

// AddResolver appends a custom resolver function to the chain consulted by
// Resolve after built-in alias lookup fails. Built-in alias lookup always
// takes precedence over every custom resolver.
func (r *Registry) AddResolver(fn func(name string) (reflect.Type, bool)) {
	r.resolvers = append(r.resolvers, fn)
}

// Resolve maps a short alias or a registered type name to its reflect.Type.
// Resolution fails closed: an unregistered name returns (nil, false) rather
// than falling back to scanning the loaded environment for a matching
// type.
func (r *Registry) Resolve(name string) (reflect.Type, bool) {
	if t, ok := r.aliasToType[name]; ok {
		return t, true
	}
	if t, ok := r.registeredNames[name]; ok {
		return t, true
	}
	for _, fn := range r.resolvers {
		if t, ok := fn(name); ok {
			return t, true
		}
	}
	return nil, false
}

// NameOf renders t back to its registered short alias, if any. Together
// with Resolve, this maintains the documented bijection: for every alias a
// with Resolve(a) == (t, true), NameOf(t) == (a, true).
func (r *Registry) NameOf(t reflect.Type) (string, bool) {
	a, ok := r.typeToAlias[t]
	return a, ok
}

// Aliases returns the full set of registered short aliases, in no
// particular order (callers that need determinism should sort the result).
func (r *Registry) Aliases() []string {
	return maps.Keys(r.aliasToType)
}

// AllowedType reports whether t (or, for Array/Nullable, its element/
// pointee type) is in the transitive closure of the allow-list: an admitted
// primitive or value type, a registered type, a registered enum, an array
// whose element type is admitted, or a nullable (pointer) wrapper around an
// admitted value type.
func (r *Registry) AllowedType(t reflect.Type) bool {
	if t == nil {
		return true // a nil interface value has no runtime type; always allowed
	}
	if _, ok := r.typeToKind[t]; ok {
		return true
	}
	switch t.Kind() {
	case reflect.Ptr:
		return r.AllowedType(t.Elem())
	case reflect.Array, reflect.Slice:
		return r.AllowedType(t.Elem())
	}
	return false
}

// Allowed reports whether v's concrete runtime type is in the allow-list. A
// nil v (or a typed nil interface) is always allowed; callers are expected
// to skip genuinely absent slots before calling Allowed, since only
// non-null slot values are required to be in the allow-list.
func (r *Registry) Allowed(v any) bool {
	if v == nil {
		return true
	}
	return r.AllowedType(reflect.TypeOf(v))
}
