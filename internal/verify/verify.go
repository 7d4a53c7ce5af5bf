// Package verify holds the identity verification adapters consulted per
// lead. Adapters never fail a row: any upstream problem degrades to an
// unverified result with a descriptive detail string.
package verify

import (
	"context"
	"sync"

	"github.com/leadworks/salesfilter/internal/model"
)

// Adapter checks one external network for a lead's presence.
type Adapter interface {
	Name() string
	Check(ctx context.Context, name, email, domain string) model.VerificationResult
}

// Registry keeps adapters in registration order so verification output
// stays deterministic across runs.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Register appends an adapter. Registering a name twice replaces the
// earlier adapter in place.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.adapters {
		if existing.Name() == a.Name() {
			r.adapters[i] = a
			return
		}
	}
	r.adapters = append(r.adapters, a)
}

// Adapters returns a snapshot of the registered adapters.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// RunAll executes every adapter sequentially and collects the results in
// registration order.
func (r *Registry) RunAll(ctx context.Context, name, email, domain string) []model.ProviderCheck {
	adapters := r.Adapters()
	checks := make([]model.ProviderCheck, 0, len(adapters))
	for _, a := range adapters {
		checks = append(checks, model.ProviderCheck{
			Provider:           a.Name(),
			VerificationResult: a.Check(ctx, name, email, domain),
		})
	}
	return checks
}
