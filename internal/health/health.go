// Package health aggregates readiness checks for gateway subsystems.
package health

import (
	"context"
	"sync"
)

// Check probes one subsystem. A nil return means healthy.
type Check func(ctx context.Context) error

// Status is the reported health of a single subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Registry holds named checks and runs them on demand. Checks registered
// under the same name replace each other; report order follows first
// registration.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]Check
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]Check)}
}

func (r *Registry) Register(name string, check Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.checks[name]; !ok {
		r.order = append(r.order, name)
	}
	r.checks[name] = check
}

// CheckAll runs every registered check in registration order and reports
// whether all subsystems are healthy.
func (r *Registry) CheckAll(ctx context.Context) (bool, []Status) {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	checks := make(map[string]Check, len(r.checks))
	for name, check := range r.checks {
		checks[name] = check
	}
	r.mu.RUnlock()

	healthy := true
	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		st := Status{Name: name, Healthy: true}
		if err := checks[name](ctx); err != nil {
			st.Healthy = false
			st.Detail = err.Error()
			healthy = false
		}
		statuses = append(statuses, st)
	}
	return healthy, statuses
}
