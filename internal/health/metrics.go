package health

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

const namespace = "mevbot"

// Metrics records pipeline events on a private registry. It satisfies the
// router's Observer interface.
type Metrics struct {
	registry       *prometheus.Registry
	candidates     *prometheus.CounterVec
	simulations    *prometheus.CounterVec
	riskRejections *prometheus.CounterVec
	executions     *prometheus.CounterVec
	landingLatency *prometheus.HistogramVec
	feesPaid       prometheus.Counter
	tipsPaid       prometheus.Counter
	published      *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry, together with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		candidates: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_classified_total",
				Help:      "Candidates by classified opportunity kind",
			},
			[]string{"kind"},
		),
		simulations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulations_total",
				Help:      "Simulations by result",
			},
			[]string{"result"},
		),
		riskRejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "risk_rejections_total",
				Help:      "Opportunities refused by the risk manager",
			},
			[]string{"reason"},
		),
		executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Submission attempts by outcome and landing mode",
			},
			[]string{"outcome", "mode"},
		),
		landingLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "landing_latency_seconds",
				Help:      "Time from submission to a final outcome",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"mode"},
		),
		feesPaid: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_paid_lamports_total",
			Help:      "Network and priority fees paid",
		}),
		tipsPaid: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tips_paid_lamports_total",
			Help:      "Block engine tips paid",
		}),
		published: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_published_total",
				Help:      "Candidates published by the listener, by source",
			},
			[]string{"source"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// WatchKillSwitch exports active() as a 0/1 gauge.
func (m *Metrics) WatchKillSwitch(active func() bool) {
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "kill_switch_active",
		Help:      "1 while the kill switch blocks admission",
	}, func() float64 {
		if active() {
			return 1
		}
		return 0
	})
}

// WatchFeeEstimate exports the current priority fee estimate in
// micro-lamports per compute unit.
func (m *Metrics) WatchFeeEstimate(estimate func() uint64) {
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "priority_fee_estimate",
		Help:      "Current priority fee estimate (micro-lamports per CU)",
	}, func() float64 { return float64(estimate()) })
}

// CandidatePublished counts a listener candidate.
func (m *Metrics) CandidatePublished(source domain.CandidateSource) {
	m.published.WithLabelValues(string(source)).Inc()
}

// CandidateClassified implements the router Observer.
func (m *Metrics) CandidateClassified(kind domain.OpportunityKind) {
	m.candidates.WithLabelValues(string(kind)).Inc()
}

// SimulationCompleted implements the router Observer.
func (m *Metrics) SimulationCompleted(res domain.SimulationResult) {
	switch {
	case !res.Success:
		m.simulations.WithLabelValues("failed").Inc()
	case !res.IsProfitable:
		m.simulations.WithLabelValues("unprofitable").Inc()
	default:
		m.simulations.WithLabelValues("profitable").Inc()
	}
}

// RiskRejected implements the router Observer.
func (m *Metrics) RiskRejected(err error) {
	m.riskRejections.WithLabelValues(riskReason(err)).Inc()
}

// ExecutionCompleted implements the router Observer.
func (m *Metrics) ExecutionCompleted(res domain.ExecutionResult) {
	mode := string(res.LandingMode)
	m.executions.WithLabelValues(string(res.Outcome), mode).Inc()
	if res.Outcome == domain.OutcomeSkipped {
		return
	}
	m.landingLatency.WithLabelValues(mode).Observe((time.Duration(res.LatencyMs) * time.Millisecond).Seconds())
	m.feesPaid.Add(float64(res.FeePaidLamports))
	m.tipsPaid.Add(float64(res.TipLamports))
}

func riskReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrKillSwitchActivated):
		return "kill_switch"
	case errors.Is(err, domain.ErrPositionSizeExceeded):
		return "position_size"
	case errors.Is(err, domain.ErrDailyLossLimitExceeded):
		return "daily_loss"
	case errors.Is(err, domain.ErrTooManyConsecutiveFailures):
		return "consecutive_failures"
	case errors.Is(err, domain.ErrTradeWouldExceedDailyLimit):
		return "projected_loss"
	default:
		return "other"
	}
}
