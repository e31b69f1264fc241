package strategy

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// StrategyInfo holds runtime info for a registered strategy (for status APIs).
type StrategyInfo struct {
	Name          string                 `json:"name"`
	Kind          domain.OpportunityKind `json:"kind"`
	Opportunities uint64                 `json:"opportunities"`
	Errors        uint64                 `json:"errors"`
	LastFound     *time.Time             `json:"last_found,omitempty"`
}

type entry struct {
	strategy Strategy
	found    atomic.Uint64
	errors   atomic.Uint64
	lastNs   atomic.Int64
}

// kindPriority is the fixed classification order; ties never fall to profit.
var kindPriority = map[domain.OpportunityKind]int{
	domain.KindArbitrage:   0,
	domain.KindSandwich:    1,
	domain.KindLiquidation: 2,
}

// Registry holds the active strategies. It is safe for concurrent use.
type Registry struct {
	entries map[string]*entry
	mu      sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds s under its name, replacing any previous strategy with the
// same name.
func (r *Registry) Register(s Strategy) error {
	if _, ok := kindPriority[s.Kind()]; !ok {
		return fmt.Errorf("strategy %q: unsupported kind %q", s.Name(), s.Kind())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.Name()] = &entry{strategy: s}
	return nil
}

// Get retrieves a strategy by name.
func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", name, domain.ErrNotFound)
	}
	return e.strategy, nil
}

// Ordered returns strategies in classification order: arbitrage, sandwich,
// liquidation, then by name within a kind.
func (r *Registry) Ordered() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.strategy)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := kindPriority[out[i].Kind()], kindPriority[out[j].Kind()]
		if pi != pj {
			return pi < pj
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// List returns the names of all registered strategies in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ListInfo returns runtime info for all registered strategies.
func (r *Registry) ListInfo() []StrategyInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]StrategyInfo, 0, len(r.entries))
	for n, e := range r.entries {
		info := StrategyInfo{
			Name:          n,
			Kind:          e.strategy.Kind(),
			Opportunities: e.found.Load(),
			Errors:        e.errors.Load(),
		}
		if ns := e.lastNs.Load(); ns > 0 {
			t := time.Unix(0, ns)
			info.LastFound = &t
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (r *Registry) recordFound(name string, at time.Time) {
	r.mu.RLock()
	e := r.entries[name]
	r.mu.RUnlock()
	if e != nil {
		e.found.Add(1)
		e.lastNs.Store(at.UnixNano())
	}
}

func (r *Registry) recordError(name string) {
	r.mu.RLock()
	e := r.entries[name]
	r.mu.RUnlock()
	if e != nil {
		e.errors.Add(1)
	}
}
