package policy

import "fmt"

// Registry holds the presets in registration order.
type Registry struct {
	order    []string
	policies map[string]SitePolicy
}

// NewRegistry creates a registry with all built-in presets.
func NewRegistry() *Registry {
	return NewRegistryWithPolicies(builtinPresets()...)
}

// NewRegistryWithPolicies creates a registry with custom policies (for testing).
func NewRegistryWithPolicies(policies ...SitePolicy) *Registry {
	r := &Registry{policies: make(map[string]SitePolicy)}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds a policy. Re-registering an ID replaces it in place.
func (r *Registry) Register(p SitePolicy) {
	if _, exists := r.policies[p.ID()]; !exists {
		r.order = append(r.order, p.ID())
	}
	r.policies[p.ID()] = p
}

// Get returns a policy by ID.
func (r *Registry) Get(id string) (SitePolicy, bool) {
	p, ok := r.policies[id]
	return p, ok
}

// Lookup is Get with an error for unknown IDs.
func (r *Registry) Lookup(id string) (SitePolicy, error) {
	p, ok := r.policies[id]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", id, r.List())
	}
	return p, nil
}

// GetAll returns all policies in registration order.
func (r *Registry) GetAll() []SitePolicy {
	result := make([]SitePolicy, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.policies[id])
	}
	return result
}

// List returns all policy IDs in registration order.
func (r *Registry) List() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}
