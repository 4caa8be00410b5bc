// Package runner implements the continuation runner: it drives one
// entry point, catches a suspension, surfaces Completed/Suspended outcomes,
// and resumes a previously suspended continuation by chain-walking to the
// root frame's method token and looking it up in an entry-point registry.
//
// The entry-point registry is keyed by a method token exactly the way
// engine/descriptor's Catalog is, so it reuses the same swiss-table map
// that backs the catalog.
package runner

import (
	"github.com/dolthub/swiss"

	"github.com/haldane-labs/continuum/rtcore"
)

// EntryFunc is the shape of a continuable entry point: it reads the current
// task context via Current() on the rtcore.Locals the runner installed it
// on with RunWith, rather than taking it as a parameter, exactly as a transformed
// method's restore prologue would read it (engine/transform emits a
// CurrentContext call, not a parameter).
type EntryFunc func() (rtcore.Value, error)

// Registry maps a method token to the entry point used to re-enter that
// method on resume. Write-once by convention (populated at program
// startup, alongside the descriptor catalog); read-many during Resume.
type Registry struct {
	m *swiss.Map[int32, EntryFunc]
}

// NewRegistry returns an empty, ready-to-populate registry.
func NewRegistry() *Registry {
	return &Registry{m: swiss.NewMap[int32, EntryFunc](8)}
}

// Register binds token to fn. Registering the same token twice replaces
// the previous binding.
func (r *Registry) Register(token int32, fn EntryFunc) {
	r.m.Put(token, fn)
}

// Lookup returns the entry point bound to token, or (nil, false) if absent.
func (r *Registry) Lookup(token int32) (EntryFunc, bool) {
	return r.m.Get(token)
}
