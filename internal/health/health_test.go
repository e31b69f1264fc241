package health

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

func healthy(msg string) ReporterFunc {
	return func() domain.ComponentHealth {
		return domain.ComponentHealth{Healthy: true, StatusMessage: msg}
	}
}

func TestAggregator_Snapshot(t *testing.T) {
	a := NewAggregator()
	fixed := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	a.Register("router", healthy("ok"))
	a.Register("executor", healthy("ok"))

	snap := a.Snapshot()
	assert.True(t, snap.OverallHealthy)
	assert.Len(t, snap.Components, 2)
	assert.Equal(t, fixed, snap.CheckedAt)
	assert.Equal(t, []string{"executor", "router"}, a.Names())

	a.Register("listener", ReporterFunc(func() domain.ComponentHealth {
		return domain.ComponentHealth{Healthy: false, ErrorCount: 3, StatusMessage: "no messages"}
	}))
	snap = a.Snapshot()
	assert.False(t, snap.OverallHealthy)
	assert.Equal(t, uint64(3), snap.Components["listener"].ErrorCount)
}

func TestAggregator_RegisterReplaces(t *testing.T) {
	a := NewAggregator()
	a.Register("risk", healthy("first"))
	a.Register("risk", healthy("second"))

	snap := a.Snapshot()
	require.Len(t, snap.Components, 1)
	assert.Equal(t, "second", snap.Components["risk"].StatusMessage)
}

func TestAggregator_EmptyIsHealthy(t *testing.T) {
	snap := NewAggregator().Snapshot()
	assert.True(t, snap.OverallHealthy)
	assert.Empty(t, snap.Components)
}

func TestMetrics_ObserverCounters(t *testing.T) {
	m := NewMetrics()

	m.CandidateClassified(domain.KindArbitrage)
	m.CandidateClassified(domain.KindArbitrage)
	m.CandidateClassified(domain.KindUnknown)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.candidates.WithLabelValues("arbitrage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.candidates.WithLabelValues("unknown")))

	m.SimulationCompleted(domain.SimulationResult{Success: false})
	m.SimulationCompleted(domain.SimulationResult{Success: true})
	m.SimulationCompleted(domain.SimulationResult{Success: true, IsProfitable: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.simulations.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.simulations.WithLabelValues("unprofitable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.simulations.WithLabelValues("profitable")))

	m.RiskRejected(fmt.Errorf("risk: %w", domain.ErrKillSwitchActivated))
	m.RiskRejected(domain.ErrTradeWouldExceedDailyLimit)
	m.RiskRejected(assert.AnError)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskRejections.WithLabelValues("kill_switch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskRejections.WithLabelValues("projected_loss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskRejections.WithLabelValues("other")))

	m.CandidatePublished(domain.SourceLogs)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues("logs")))
}

func TestMetrics_ExecutionCompleted(t *testing.T) {
	m := NewMetrics()

	m.ExecutionCompleted(domain.ExecutionResult{
		Outcome:         domain.OutcomeLanded,
		LandingMode:     domain.LandingJito,
		LatencyMs:       420,
		FeePaidLamports: 5_200,
		TipLamports:     10_000,
	})
	m.ExecutionCompleted(domain.ExecutionResult{Outcome: domain.OutcomeSkipped, LandingMode: domain.LandingJito})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.executions.WithLabelValues("landed", "jito")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executions.WithLabelValues("skipped", "jito")))
	assert.Equal(t, 5_200.0, testutil.ToFloat64(m.feesPaid))
	assert.Equal(t, 10_000.0, testutil.ToFloat64(m.tipsPaid))
	assert.Equal(t, 1, testutil.CollectAndCount(m.landingLatency))
}

func TestMetrics_GaugesAndHandler(t *testing.T) {
	m := NewMetrics()
	active := false
	m.WatchKillSwitch(func() bool { return active })
	m.WatchFeeEstimate(func() uint64 { return 12_345 })

	expected := `
# HELP mevbot_kill_switch_active 1 while the kill switch blocks admission
# TYPE mevbot_kill_switch_active gauge
mevbot_kill_switch_active 1
`
	active = true
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "mevbot_kill_switch_active"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mevbot_priority_fee_estimate 12345")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
