// Package objgraph implements the identity-preserving object-graph tracker
// used by serialization collaborators to assign and recall dense, stable
// ids for the reference values reachable from a captured slot graph, so
// that two references to the same live object round-trip to two
// references to the same decoded object.
//
// A swiss-table map backs the id->object direction; the identity->id
// direction is a plain Go map keyed by identityKey.
package objgraph

import (
	"fmt"
	"reflect"

	"github.com/dolthub/swiss"
)

// NullID is the reserved, idempotent sentinel id for the tracked null
// value.
const NullID = -1

// DefaultCeiling bounds the id a decoder may bind via RegisterDeserialized,
// defending against a decoder-induced allocation attack that binds an
// enormous id and forces unbounded backing-storage growth.
const DefaultCeiling = 1 << 24

// identityKey is the map key used for reference-kinded values: a pointer,
// map, channel, function, or slice is keyed by its underlying data pointer
// (so two interface values wrapping the same live object compare equal as
// map keys even though the interface values themselves are distinct);
// every other kind (structs, arrays, and other value-kinded Go types passed
// by value) has no address-identity to track in Go the way a class
// instance would on the managed runtime, so it is keyed by the value
// itself — consistent value-based dedup rather than reference identity,
// which is the Go-native rendering of "value types don't have identity."
type identityKey struct {
	typ reflect.Type
	ptr uintptr
	len int // only meaningful for slices, to distinguish distinct-but-adjacent sub-slices
	val any // populated only for the value-kinded fallback branch
}

func keyOf(obj any) identityKey {
	v := reflect.ValueOf(obj)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if v.IsNil() {
			return identityKey{typ: v.Type()}
		}
		return identityKey{typ: v.Type(), ptr: v.Pointer()}
	case reflect.Slice:
		if v.IsNil() {
			return identityKey{typ: v.Type()}
		}
		return identityKey{typ: v.Type(), ptr: v.Pointer(), len: v.Len()}
	default:
		return identityKey{typ: v.Type(), val: obj}
	}
}

type binding struct {
	obj any
	set bool
}

// Tracker is a bijective, single-pass identity<->id mapping. Not safe for
// concurrent use; one tracker belongs to one serialization or
// deserialization pass.
type Tracker struct {
	nextID int

	ids  map[identityKey]int
	byID *swiss.Map[int, binding]

	nullRegistered bool

	ceiling int
}

// New returns an empty tracker with DefaultCeiling.
func New() *Tracker { return NewWithCeiling(DefaultCeiling) }

// NewWithCeiling returns an empty tracker that rejects RegisterDeserialized
// ids above ceiling.
func NewWithCeiling(ceiling int) *Tracker {
	return &Tracker{
		ids:     make(map[identityKey]int),
		byID:    swiss.NewMap[int, binding](8),
		ceiling: ceiling,
	}
}

// TryRegister registers obj if not already known, returning whether this
// was its first registration and its assigned id. nil is tracked
// uniformly: the first registration of nil returns (true, NullID);
// subsequent registrations of nil return (false, NullID). Non-nil values
// use reference identity (see identityKey); the first registration of a
// given identity assigns the next sequential id starting at 0.
func (t *Tracker) TryRegister(obj any) (isNew bool, id int) {
	if obj == nil {
		first := !t.nullRegistered
		t.nullRegistered = true
		return first, NullID
	}
	k := keyOf(obj)
	if id, ok := t.ids[k]; ok {
		return false, id
	}
	id = t.nextID
	t.nextID++
	t.ids[k] = id
	t.byID.Put(id, binding{obj: obj, set: true})
	return true, id
}

// IsRegistered reports whether obj was previously registered. nil always
// returns false: it is tracked (so TryRegister's idempotent sentinel
// works) but is never considered a "user" registration.
func (t *Tracker) IsRegistered(obj any) bool {
	if obj == nil {
		return false
	}
	_, ok := t.ids[keyOf(obj)]
	return ok
}

// IDOf returns obj's assigned id, or (0, false) if obj is unregistered.
// Never faults on an unregistered object.
func (t *Tracker) IDOf(obj any) (int, bool) {
	if obj == nil {
		if t.nullRegistered {
			return NullID, true
		}
		return 0, false
	}
	id, ok := t.ids[keyOf(obj)]
	return id, ok
}

// RegisterDeserialized binds id to obj during decode, for a decoder
// replaying a previously encoded id->object binding. id must be
// non-negative and at most the tracker's configured ceiling; re-binding the
// same id to the same obj (by reference identity, or by Go equality for a
// value-kinded obj) is idempotent, but re-binding to a different object is
// rejected.
func (t *Tracker) RegisterDeserialized(id int, obj any) error {
	if id < 0 {
		return fmt.Errorf("objgraph: register deserialized: negative id %d", id)
	}
	if id > t.ceiling {
		return fmt.Errorf("objgraph: register deserialized: id %d exceeds safety ceiling %d", id, t.ceiling)
	}
	if b, ok := t.byID.Get(id); ok {
		if sameBinding(b.obj, obj) {
			return nil
		}
		return fmt.Errorf("objgraph: register deserialized: id %d already bound to a different object", id)
	}
	t.byID.Put(id, binding{obj: obj, set: true})
	if obj != nil {
		t.ids[keyOf(obj)] = id
	}
	if id >= t.nextID {
		t.nextID = id + 1
	}
	return nil
}

func sameBinding(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ka, kb := keyOf(a), keyOf(b)
	return ka == kb
}

// GetByID returns the object bound to id and whether id is actually bound,
// distinguishing "never bound" (false) from "bound to nil" (true, nil).
// A negative id always reports unbound.
func (t *Tracker) GetByID(id int) (any, bool) {
	if id < 0 {
		return nil, false
	}
	b, ok := t.byID.Get(id)
	if !ok || !b.set {
		return nil, false
	}
	return b.obj, true
}

// Clear resets the tracker to empty; a subsequent TryRegister assigns ids
// starting from 0 again.
func (t *Tracker) Clear() {
	t.nextID = 0
	t.nullRegistered = false
	t.ids = make(map[identityKey]int)
	t.byID = swiss.NewMap[int, binding](8)
}
