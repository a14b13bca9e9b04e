package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/msmafra/sogeBot/ports"
)

// DependencyError reports a module dependency that could not be resolved
// within the retry budget. This is a fatal configuration error, not a
// transient one.
type DependencyError struct {
	Module     string
	Dependency string
	Attempts   int
}

// Error implements error.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("module %s: dependency %s not resolved after %d attempts",
		e.Module, e.Dependency, e.Attempts)
}

// Registry holds every module by canonical path and resolves declared
// dependencies into typed prober handles once at assembly time. After
// resolution no module performs an ambient lookup per call.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module

	// loading counts modules whose construction has not completed yet.
	// Deferred settings loads wait for it to drain.
	loading atomic.Int32

	log zerolog.Logger

	// Dependency resolution budget. Modules may register out of order;
	// the bounded retry loop is the backpressure against that.
	attempts int
	backoff  time.Duration
}

// NewRegistry creates an empty registry with the default resolution budget
// of 1000 attempts at a fixed short backoff.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		modules:  make(map[string]*Module),
		log:      log,
		attempts: 1000,
		backoff:  10 * time.Millisecond,
	}
}

// SetResolutionBudget overrides the dependency retry budget.
func (r *Registry) SetResolutionBudget(attempts int, backoff time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempts > 0 {
		r.attempts = attempts
	}
	if backoff > 0 {
		r.backoff = backoff
	}
}

// Register adds a module and marks it as loading until its dependencies
// are resolved.
func (r *Registry) Register(m *Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[m.ID()]; exists {
		return fmt.Errorf("app: module %q already registered", m.ID())
	}
	r.modules[m.ID()] = m
	r.loading.Add(1)

	r.log.Debug().Str("module", m.ID()).Msg("module registered")
	return nil
}

// Get returns a registered module by canonical path.
func (r *Registry) Get(id string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[id]
	return m, ok
}

// List returns all modules sorted by canonical path.
func (r *Registry) List() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Loading returns the number of modules still under construction.
func (r *Registry) Loading() int {
	return int(r.loading.Load())
}

// ResolveDependencies resolves every module's declared dependencies into
// prober handles, waiting out registration order with the bounded retry
// budget, then drains the loading counter. Exhausting the budget aborts
// assembly.
func (r *Registry) ResolveDependencies(ctx context.Context) error {
	for _, m := range r.List() {
		deps := make(map[string]ports.StatusProber, len(m.opts.DependsOn))
		for _, depID := range m.opts.DependsOn {
			dep, err := r.resolve(ctx, m.ID(), depID)
			if err != nil {
				return err
			}
			deps[depID] = dep
		}

		m.mu.Lock()
		m.deps = deps
		m.mu.Unlock()
		m.RefreshHealth()
		r.loading.Add(-1)
	}
	r.log.Info().Int("modules", len(r.List())).Msg("module dependencies resolved")
	return nil
}

func (r *Registry) resolve(ctx context.Context, moduleID, depID string) (*Module, error) {
	attempts, backoff := r.budget()
	for i := 0; i < attempts; i++ {
		if dep, ok := r.Get(depID); ok {
			return dep, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, &DependencyError{Module: moduleID, Dependency: depID, Attempts: attempts}
}

func (r *Registry) budget() (int, time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.attempts, r.backoff
}

// StartAll launches background tasks for every registered module.
func (r *Registry) StartAll(ctx context.Context) {
	for _, m := range r.List() {
		m.Start(ctx, r)
	}
}
