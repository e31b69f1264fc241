// Package health aggregates component liveness and exports pipeline metrics.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// ReporterFunc adapts a function to domain.HealthReporter.
type ReporterFunc func() domain.ComponentHealth

// HealthCheck implements domain.HealthReporter.
func (f ReporterFunc) HealthCheck() domain.ComponentHealth { return f() }

// Aggregator collects the health of named components. It is safe for
// concurrent use.
type Aggregator struct {
	mu        sync.RWMutex
	reporters map[string]domain.HealthReporter
	now       func() time.Time
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		reporters: make(map[string]domain.HealthReporter),
		now:       time.Now,
	}
}

// Register adds or replaces the reporter for name.
func (a *Aggregator) Register(name string, r domain.HealthReporter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reporters[name] = r
}

// Names returns the registered component names in sorted order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.reporters))
	for n := range a.reporters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot polls every reporter. The engine is healthy only when every
// component is.
func (a *Aggregator) Snapshot() domain.EngineHealth {
	a.mu.RLock()
	reporters := make(map[string]domain.HealthReporter, len(a.reporters))
	for n, r := range a.reporters {
		reporters[n] = r
	}
	a.mu.RUnlock()

	out := domain.EngineHealth{
		OverallHealthy: true,
		Components:     make(map[string]domain.ComponentHealth, len(reporters)),
		CheckedAt:      a.now().UTC(),
	}
	for n, r := range reporters {
		h := r.HealthCheck()
		out.Components[n] = h
		if !h.Healthy {
			out.OverallHealthy = false
		}
	}
	return out
}
