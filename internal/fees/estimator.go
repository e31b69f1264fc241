// Package fees estimates priority fees and tips from a bounded window of
// recent network fee observations.
package fees

import (
	"math"
	"sort"
	"sync"
	"time"
)

// regressionWindow is the number of most recent samples used by
// PredictNextFee.
const regressionWindow = 10

// Sample is one observed priority fee.
type Sample struct {
	Slot      uint64    `json:"slot"`
	Fee       uint64    `json:"fee"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats summarizes the current window.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median uint64  `json:"median"`
	P95    uint64  `json:"p95"`
	Min    uint64  `json:"min"`
	Max    uint64  `json:"max"`
}

// Config configures an Estimator.
type Config struct {
	WindowSize int
	BaseFee    uint64
	MinFee     uint64
	Percentile float64
	Strategy   Strategy
}

// Estimator keeps a ring of recent fee samples.
type Estimator struct {
	mu      sync.RWMutex
	samples []Sample
	next    int
	full    bool
	cfg     Config
	now     func() time.Time
}

// NewEstimator creates an Estimator. A non-positive window defaults to 150.
func NewEstimator(cfg Config) *Estimator {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 150
	}
	if cfg.Percentile <= 0 || cfg.Percentile > 1 {
		cfg.Percentile = 0.5
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyBalanced
	}
	return &Estimator{
		samples: make([]Sample, cfg.WindowSize),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Record appends an observation, evicting the oldest when the window is full.
func (e *Estimator) Record(slot, fee uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.samples[e.next] = Sample{Slot: slot, Fee: fee, Timestamp: e.now()}
	e.next = (e.next + 1) % len(e.samples)
	if e.next == 0 {
		e.full = true
	}
}

// Len returns the number of samples in the window.
func (e *Estimator) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lenLocked()
}

func (e *Estimator) lenLocked() int {
	if e.full {
		return len(e.samples)
	}
	return e.next
}

// history returns the window in chronological order.
func (e *Estimator) history() []Sample {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := e.lenLocked()
	out := make([]Sample, 0, n)
	if e.full {
		out = append(out, e.samples[e.next:]...)
		out = append(out, e.samples[:e.next]...)
		return out
	}
	return append(out, e.samples[:e.next]...)
}

func (e *Estimator) sortedFees() []uint64 {
	h := e.history()
	fees := make([]uint64, len(h))
	for i, s := range h {
		fees[i] = s.Fee
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })
	return fees
}

// CalculateOptimalFee picks the fee at percentile of the current window,
// scales it by urgency and floors it at minFee. An empty window falls back to
// the base fee.
func (e *Estimator) CalculateOptimalFee(percentile float64, minFee uint64, urgency float64) uint64 {
	fees := e.sortedFees()

	var fee float64
	if len(fees) == 0 {
		fee = float64(e.cfg.BaseFee) * urgency
	} else {
		fee = float64(percentileOf(fees, percentile)) * urgency
	}
	if fee < float64(minFee) {
		return minFee
	}
	return uint64(math.Round(fee))
}

// OptimalFee uses the configured percentile, minimum and strategy.
func (e *Estimator) OptimalFee(urgency float64) uint64 {
	return e.FeeForStrategy(e.cfg.Strategy, urgency)
}

// PredictNextFee fits a least-squares line over the most recent samples and
// extrapolates one step ahead, floored at the base fee.
func (e *Estimator) PredictNextFee() uint64 {
	h := e.history()
	if len(h) < 2 {
		return e.cfg.BaseFee
	}
	if len(h) > regressionWindow {
		h = h[len(h)-regressionWindow:]
	}

	n := float64(len(h))
	var sumX, sumY, sumXY, sumXX float64
	for i, s := range h {
		x := float64(i)
		y := float64(s.Fee)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return e.cfg.BaseFee
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	predicted := intercept + slope*n

	if predicted < float64(e.cfg.BaseFee) {
		return e.cfg.BaseFee
	}
	return uint64(math.Round(predicted))
}

// Stats summarizes the current window.
func (e *Estimator) Stats() Stats {
	fees := e.sortedFees()
	if len(fees) == 0 {
		return Stats{}
	}
	var sum float64
	for _, f := range fees {
		sum += float64(f)
	}
	return Stats{
		Count:  len(fees),
		Mean:   sum / float64(len(fees)),
		Median: percentileOf(fees, 0.5),
		P95:    percentileOf(fees, 0.95),
		Min:    fees[0],
		Max:    fees[len(fees)-1],
	}
}

// percentileOf indexes a sorted slice at floor((n-1)*p).
func percentileOf(sorted []uint64, p float64) uint64 {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// UrgencyMultiplier combines the profit tier, the remaining-time tier and the
// competition level into one multiplicative factor.
func UrgencyMultiplier(profitUSD, ttlSeconds, competition float64) float64 {
	return profitFactor(profitUSD) * ttlFactor(ttlSeconds) * (1 + competition*0.5)
}

func profitFactor(profitUSD float64) float64 {
	switch {
	case profitUSD < 0.1:
		return 0.8
	case profitUSD < 1:
		return 1.0
	case profitUSD < 10:
		return 1.5
	case profitUSD < 100:
		return 2.0
	default:
		return 3.0
	}
}

func ttlFactor(ttlSeconds float64) float64 {
	switch {
	case ttlSeconds < 10:
		return 2.0
	case ttlSeconds < 30:
		return 1.5
	case ttlSeconds < 60:
		return 1.2
	default:
		return 1.0
	}
}
