package units

import (
	"sort"
	"sync"

	"github.com/provis-io/provis/pkg/schema"
)

// Registry is the thread-safe unit catalog. Units are contributed at startup
// and immutable afterwards.
type Registry struct {
	mu    sync.RWMutex
	units map[string]*ScriptUnit
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		units: make(map[string]*ScriptUnit),
	}
}

// Register adds a unit after checking its registration-time contract.
// Duplicate ids are rejected.
func (r *Registry) Register(u *ScriptUnit) error {
	if u == nil {
		return schema.NewError(schema.ErrCodeValidation, "unit is nil")
	}
	if err := u.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.units[u.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "unit %q already registered", u.ID)
	}

	r.units[u.ID] = u
	return nil
}

// RegisterAll registers every unit, stopping at the first failure.
func (r *Registry) RegisterAll(us []*ScriptUnit) error {
	for _, u := range us {
		if err := r.Register(u); err != nil {
			return err
		}
	}
	return nil
}

// Lookup retrieves a unit by id.
func (r *Registry) Lookup(id string) (*ScriptUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.units[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeUnitNotFound, "unit %q not registered", id)
	}
	return u, nil
}

// RequiredParameters returns the names of the unit's required parameters.
func (r *Registry) RequiredParameters(id string) ([]string, error) {
	u, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, p := range u.Parameters {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names, nil
}

// List returns all registered unit ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.units))
	for id := range r.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has checks if a unit is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.units[id]
	return ok
}

// Count returns the number of registered units.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}
