// Package descriptor implements the frame descriptor catalog: the static
// shape of every transformed method, published once at build time and read
// by the validator and the runner. Keyed by method token and backed by an
// open-addressing swiss-table map, since the catalog sits on the hot path
// of every yield check's symmetric restore.
package descriptor

import (
	"github.com/dolthub/swiss"
	"golang.org/x/exp/slices"
)

// SlotKind classifies one entry in a frame descriptor's Slots.
type SlotKind uint8

const (
	LocalSlot SlotKind = iota
	ArgumentSlot
	EvalStackSlot
)

// SlotSpec describes one slot of a transformed method's captured frame.
type SlotSpec struct {
	Index                int
	DebugName            string
	Kind                 SlotKind
	DeclaredType         string
	SerializationRequired bool
}

// Descriptor is the compile-time shape of one transformed method. It is
// immutable after construction: New takes defensive copies so no
// caller-owned storage is aliased.
type Descriptor struct {
	MethodToken int32
	MethodName  string

	slots              []SlotSpec
	yieldPointIDs      []int
	liveSlotsAtYield   [][]bool // parallel to yieldPointIDs; len(live[i]) == len(slots)
}

// New builds a Descriptor, copying slots and liveSlotsAtYield so the result
// cannot be mutated by later changes to the caller's backing arrays.
// yieldPointIDs must already be ordered, strictly increasing, and
// non-negative; liveSlotsAtYield must have the same length.
func New(token int32, name string, slots []SlotSpec, yieldPointIDs []int, liveSlotsAtYield [][]bool) *Descriptor {
	d := &Descriptor{
		MethodToken:   token,
		MethodName:    name,
		slots:         slices.Clone(slots),
		yieldPointIDs: slices.Clone(yieldPointIDs),
	}
	d.liveSlotsAtYield = make([][]bool, len(liveSlotsAtYield))
	for i, bm := range liveSlotsAtYield {
		d.liveSlotsAtYield[i] = slices.Clone(bm)
	}
	return d
}

// Slots returns a defensive copy of the descriptor's slot specs.
func (d *Descriptor) Slots() []SlotSpec { return slices.Clone(d.slots) }

// NumSlots returns the total slot count.
func (d *Descriptor) NumSlots() int { return len(d.slots) }

// YieldPointIDs returns a defensive copy of the ordered yield-point id list.
func (d *Descriptor) YieldPointIDs() []int { return slices.Clone(d.yieldPointIDs) }

// NumYieldPoints returns the number of yield points this method has.
func (d *Descriptor) NumYieldPoints() int { return len(d.yieldPointIDs) }

// LiveCountAt returns the number of live slots at the yield point whose id
// is yieldPointID, or -1 if no such yield point exists.
func (d *Descriptor) LiveCountAt(yieldPointID int) int {
	for i, id := range d.yieldPointIDs {
		if id == yieldPointID {
			n := 0
			for _, live := range d.liveSlotsAtYield[i] {
				if live {
					n++
				}
			}
			return n
		}
	}
	return -1
}

// HasYieldPoint reports whether id is a valid yield-point id for this
// descriptor (a non-negative index less than the yield-point count).
func (d *Descriptor) HasYieldPoint(id int) bool {
	return id >= 0 && id < len(d.yieldPointIDs)
}

// Catalog maps method tokens to their frame descriptor. Populated once per
// build by the transformer's publication step (C6(h)) and the rewriter
// (C7); read-many thereafter by the validator and the runner. Lookup by an
// unknown token returns (nil, false).
type Catalog struct {
	m *swiss.Map[int32, *Descriptor]
}

// NewCatalog returns an empty, ready-to-populate catalog.
func NewCatalog() *Catalog {
	return &Catalog{m: swiss.NewMap[int32, *Descriptor](8)}
}

// Publish registers d under its MethodToken. Keys are unique: publishing a
// second descriptor for an already-published token replaces it (this only
// happens across distinct builds of the same method; a single build never
// publishes the same token twice because method tokens are derived from the
// method's own identity).
func (c *Catalog) Publish(d *Descriptor) {
	c.m.Put(d.MethodToken, d)
}

// Lookup returns the descriptor for token, or (nil, false) if absent.
func (c *Catalog) Lookup(token int32) (*Descriptor, bool) {
	return c.m.Get(token)
}

// Len returns the number of published descriptors.
func (c *Catalog) Len() int { return c.m.Count() }
