// Package health aggregates named subsystem checks for readiness probes.
package health

import (
	"context"
	"sync"
	"time"
)

// checkTimeout bounds one subsystem check so a hung dependency cannot
// stall the readiness endpoint.
const checkTimeout = 2 * time.Second

// Status is the result of one subsystem check.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker probes one subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	names    []string
	checkers map[string]Checker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

// Register adds a checker under name. Registering the same name twice
// replaces the checker but keeps its original position in results.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.checkers[name]; !exists {
		r.names = append(r.names, name)
	}
	r.checkers[name] = check
}

// CheckAll runs every checker concurrently and reports the aggregate
// verdict plus per-subsystem results in registration order. A checker
// that overruns its timeout is reported unhealthy.
func (r *Registry) CheckAll(ctx context.Context) (bool, []Status) {
	r.mu.RLock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	checkers := make(map[string]Checker, len(r.checkers))
	for name, check := range r.checkers {
		checkers[name] = check
	}
	r.mu.RUnlock()

	statuses := make([]Status, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string, check Checker) {
			defer wg.Done()
			statuses[i] = runOne(ctx, name, check)
		}(i, name, checkers[name])
	}
	wg.Wait()

	healthy := true
	for _, s := range statuses {
		if !s.Healthy {
			healthy = false
			break
		}
	}
	return healthy, statuses
}

func runOne(ctx context.Context, name string, check Checker) Status {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	done := make(chan Status, 1)
	go func() { done <- check(ctx) }()

	select {
	case s := <-done:
		return s
	case <-ctx.Done():
		return Status{Name: name, Healthy: false, Detail: "check timed out"}
	}
}
