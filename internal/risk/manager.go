// Package risk implements the stateful admission controller that gates every
// trade before submission.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

const dateLayout = "2006-01-02"

// Config holds the admission limits.
type Config struct {
	MaxSOLPerTrade         float64
	DailyLossLimitUSD      float64
	MaxConsecutiveFailures uint32
	AutoDisableOnFailures  bool
	// KillSwitch starts the manager in the kill-switched state.
	KillSwitch bool
}

// Validate reports every invalid limit.
func (c Config) Validate() error {
	var errs []error
	if c.MaxSOLPerTrade <= 0 {
		errs = append(errs, errors.New("max_sol_per_trade must be > 0"))
	}
	if c.DailyLossLimitUSD <= 0 {
		errs = append(errs, errors.New("daily_loss_limit_usd must be > 0"))
	}
	if c.MaxConsecutiveFailures == 0 {
		errs = append(errs, errors.New("max_consecutive_failures must be > 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("risk: invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for daily rollover.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithStateStore persists daily stats and the kill switch so they survive a
// restart.
func WithStateStore(s domain.RiskStateStore) Option {
	return func(m *Manager) { m.store = s }
}

// Manager is the risk state machine. It starts Armed; the kill switch moves it
// to KillSwitched until DeactivateKillSwitch is called.
type Manager struct {
	mu         sync.RWMutex
	cfg        Config
	daily      domain.DailyStats
	session    domain.SessionStats
	killSwitch bool
	killReason string
	onKill     []func(reason string)
	store      domain.RiskStateStore
	now        func() time.Time
	logger     *slog.Logger
}

// NewManager creates a Manager.
func NewManager(cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "risk")),
	}
	for _, opt := range opts {
		opt(m)
	}
	now := m.now()
	m.daily = domain.DailyStats{Date: dayOf(now)}
	m.session = domain.SessionStats{StartedAt: now}
	if cfg.KillSwitch {
		m.killSwitch = true
		m.killReason = "enabled in configuration"
	}
	return m
}

// OnKillSwitch registers fn to be called, outside the lock, whenever the kill
// switch is activated.
func (m *Manager) OnKillSwitch(fn func(reason string)) {
	m.mu.Lock()
	m.onKill = append(m.onKill, fn)
	m.mu.Unlock()
}

// Restore loads persisted state. Daily stats are only restored for the
// current day; an active kill switch is always restored.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	snap, err := m.store.LoadRiskSnapshot(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("risk: restore: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Daily.Date == dayOf(m.now()) {
		m.daily = snap.Daily
	}
	// a failure streak spans midnight
	m.session.ConsecutiveFailures = snap.ConsecutiveFailures
	if snap.KillSwitch {
		m.killSwitch = true
		m.killReason = snap.KillSwitchReason
	}
	m.logger.InfoContext(ctx, "risk state restored",
		slog.String("date", m.daily.Date),
		slog.Float64("loss_usd", m.daily.LossUSD),
		slog.Uint64("consecutive_failures", uint64(m.session.ConsecutiveFailures)),
		slog.Bool("kill_switch", m.killSwitch),
	)
	return nil
}

// CanExecuteTrade runs the admission checks in order and returns the first
// failure:
//  1. kill switch active
//  2. trade size above the per-trade cap
//  3. daily loss at or above the limit
//  4. consecutive failures at or above the cap (may trip the kill switch)
//  5. projected daily loss including this trade's worst case
func (m *Manager) CanExecuteTrade(ctx context.Context, tradeSizeSOL, expectedProfitUSD float64) error {
	m.mu.Lock()
	m.rolloverLocked()

	if m.killSwitch {
		m.mu.Unlock()
		return domain.ErrKillSwitchActivated
	}

	if tradeSizeSOL > m.cfg.MaxSOLPerTrade {
		m.mu.Unlock()
		m.logger.WarnContext(ctx, "trade size exceeds limit",
			slog.Float64("size_sol", tradeSizeSOL),
			slog.Float64("max_sol", m.cfg.MaxSOLPerTrade),
		)
		return fmt.Errorf("%w: %.4f SOL > %.4f SOL", domain.ErrPositionSizeExceeded, tradeSizeSOL, m.cfg.MaxSOLPerTrade)
	}

	if m.daily.LossUSD >= m.cfg.DailyLossLimitUSD {
		loss := m.daily.LossUSD
		m.mu.Unlock()
		return fmt.Errorf("%w: $%.2f >= $%.2f", domain.ErrDailyLossLimitExceeded, loss, m.cfg.DailyLossLimitUSD)
	}

	if m.session.ConsecutiveFailures >= m.cfg.MaxConsecutiveFailures {
		failures := m.session.ConsecutiveFailures
		var hooks []func(string)
		var reason string
		if m.cfg.AutoDisableOnFailures {
			reason = fmt.Sprintf("%d consecutive failures", failures)
			hooks = m.activateLocked(reason)
		}
		snap := m.snapshotLocked()
		m.mu.Unlock()

		if hooks != nil {
			m.logger.ErrorContext(ctx, "kill switch activated automatically",
				slog.Uint64("consecutive_failures", uint64(failures)),
			)
			m.persist(ctx, snap)
			runHooks(hooks, reason)
		}
		return fmt.Errorf("%w: %d", domain.ErrTooManyConsecutiveFailures, failures)
	}

	projected := m.daily.LossUSD + math.Abs(math.Min(expectedProfitUSD, 0))
	if projected >= m.cfg.DailyLossLimitUSD {
		m.mu.Unlock()
		return fmt.Errorf("%w: projected $%.2f", domain.ErrTradeWouldExceedDailyLimit, projected)
	}

	m.mu.Unlock()
	return nil
}

// RecordTradeResult applies one finished trade to the daily and session stats
// in a single critical section. A positive pnlUSD is profit, a negative one
// is loss.
func (m *Manager) RecordTradeResult(ctx context.Context, success bool, pnlUSD, tradeSizeSOL float64) {
	m.mu.Lock()
	m.rolloverLocked()

	m.daily.TradesExecuted++
	m.daily.VolumeSOL += tradeSizeSOL
	m.session.TotalTrades++

	if pnlUSD > 0 {
		m.daily.ProfitUSD += pnlUSD
		m.session.TotalProfitUSD += pnlUSD
	} else if pnlUSD < 0 {
		m.daily.LossUSD += -pnlUSD
		m.session.TotalLossUSD += -pnlUSD
	}

	if success {
		m.daily.TradesSucceeded++
		m.session.TotalSucceeded++
		m.session.ConsecutiveFailures = 0
	} else {
		m.daily.TradesFailed++
		m.session.TotalFailed++
		m.session.ConsecutiveFailures++
	}
	failures := m.session.ConsecutiveFailures

	// Trip the switch as soon as the streak reaches the cap so the very next
	// admission is refused.
	var hooks []func(string)
	var reason string
	if !success && m.cfg.AutoDisableOnFailures && failures >= m.cfg.MaxConsecutiveFailures {
		reason = fmt.Sprintf("%d consecutive failures", failures)
		hooks = m.activateLocked(reason)
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "trade result recorded",
		slog.Bool("success", success),
		slog.Float64("pnl_usd", pnlUSD),
		slog.Uint64("consecutive_failures", uint64(failures)),
	)
	if hooks != nil {
		m.logger.ErrorContext(ctx, "kill switch activated automatically",
			slog.Uint64("consecutive_failures", uint64(failures)),
		)
	}
	m.persist(ctx, snap)
	if hooks != nil {
		runHooks(hooks, reason)
	}
}

// ActivateKillSwitch halts all new admissions until DeactivateKillSwitch.
func (m *Manager) ActivateKillSwitch(ctx context.Context, reason string) {
	m.mu.Lock()
	hooks := m.activateLocked(reason)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if hooks == nil {
		return
	}
	m.logger.WarnContext(ctx, "kill switch activated", slog.String("reason", reason))
	m.persist(ctx, snap)
	runHooks(hooks, reason)
}

// DeactivateKillSwitch clears the kill switch and the consecutive failure
// streak that may have tripped it.
func (m *Manager) DeactivateKillSwitch(ctx context.Context) {
	m.mu.Lock()
	was := m.killSwitch
	m.killSwitch = false
	m.killReason = ""
	m.session.ConsecutiveFailures = 0
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if was {
		m.logger.InfoContext(ctx, "kill switch deactivated")
	}
	m.persist(ctx, snap)
}

// KillSwitchActive reports the current state.
func (m *Manager) KillSwitchActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.killSwitch
}

// ResetDailyStats zeroes the daily counters for the current day.
func (m *Manager) ResetDailyStats(ctx context.Context) {
	m.mu.Lock()
	m.daily = domain.DailyStats{Date: dayOf(m.now())}
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.persist(ctx, snap)
}

// Status returns a snapshot, rolling the day over first if needed.
func (m *Manager) Status() domain.RiskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked()

	var rate float64
	if m.daily.TradesExecuted > 0 {
		rate = float64(m.daily.TradesSucceeded) / float64(m.daily.TradesExecuted)
	}
	return domain.RiskStatus{
		KillSwitchActive:    m.killSwitch,
		KillSwitchReason:    m.killReason,
		Daily:               m.daily,
		Session:             m.session,
		DailyLossLimitUSD:   m.cfg.DailyLossLimitUSD,
		RemainingBudgetUSD:  math.Max(m.cfg.DailyLossLimitUSD-m.daily.LossUSD, 0),
		SuccessRate:         rate,
		MaxSOLPerTrade:      m.cfg.MaxSOLPerTrade,
		ConsecutiveFailures: m.session.ConsecutiveFailures,
	}
}

// DailyStats returns the current day's stats.
func (m *Manager) DailyStats() domain.DailyStats {
	return m.Status().Daily
}

// ConsecutiveFailures returns the current failure streak.
func (m *Manager) ConsecutiveFailures() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.ConsecutiveFailures
}

// CheckAlerts returns warnings that do not block admission on their own.
func (m *Manager) CheckAlerts() []domain.RiskAlert {
	st := m.Status()
	var alerts []domain.RiskAlert

	if st.SuccessRate > 0 && st.SuccessRate < 0.5 {
		alerts = append(alerts, domain.RiskAlert{
			Kind:    domain.AlertHighLossRate,
			Message: fmt.Sprintf("success rate %.1f%% today", st.SuccessRate*100),
		})
	}
	if st.DailyLossLimitUSD > 0 && st.Daily.LossUSD > st.DailyLossLimitUSD*0.8 {
		alerts = append(alerts, domain.RiskAlert{
			Kind:    domain.AlertDailyLossApproaching,
			Message: fmt.Sprintf("daily loss $%.2f of $%.2f limit", st.Daily.LossUSD, st.DailyLossLimitUSD),
		})
	}
	if m.cfg.MaxConsecutiveFailures > 0 && st.ConsecutiveFailures >= m.cfg.MaxConsecutiveFailures/2 && st.ConsecutiveFailures > 0 {
		alerts = append(alerts, domain.RiskAlert{
			Kind:    domain.AlertConsecutiveFailures,
			Message: fmt.Sprintf("%d consecutive failures (max %d)", st.ConsecutiveFailures, m.cfg.MaxConsecutiveFailures),
		})
	}
	return alerts
}

// HealthCheck reports the manager as unhealthy while the kill switch is on.
func (m *Manager) HealthCheck() domain.ComponentHealth {
	st := m.Status()
	msg := fmt.Sprintf("daily loss $%.2f / $%.2f, %d consecutive failures",
		st.Daily.LossUSD, st.DailyLossLimitUSD, st.ConsecutiveFailures)
	if st.KillSwitchActive {
		msg = "kill switch active: " + st.KillSwitchReason
	}
	return domain.ComponentHealth{
		Healthy:       !st.KillSwitchActive,
		LastActive:    m.now(),
		ErrorCount:    st.Daily.TradesFailed,
		StatusMessage: msg,
	}
}

// activateLocked flips the switch and returns the hooks to run, or nil if it
// was already active.
func (m *Manager) activateLocked(reason string) []func(string) {
	if m.killSwitch {
		return nil
	}
	m.killSwitch = true
	m.killReason = reason
	hooks := make([]func(string), len(m.onKill))
	copy(hooks, m.onKill)
	return hooks
}

func (m *Manager) rolloverLocked() {
	today := dayOf(m.now())
	if m.daily.Date == today {
		return
	}
	m.logger.Info("daily stats rollover",
		slog.String("previous_date", m.daily.Date),
		slog.String("date", today),
		slog.Float64("previous_loss_usd", m.daily.LossUSD),
	)
	m.daily = domain.DailyStats{Date: today}
}

func (m *Manager) snapshotLocked() domain.RiskSnapshot {
	return domain.RiskSnapshot{
		Daily:               m.daily,
		ConsecutiveFailures: m.session.ConsecutiveFailures,
		KillSwitch:          m.killSwitch,
		KillSwitchReason:    m.killReason,
	}
}

func (m *Manager) persist(ctx context.Context, snap domain.RiskSnapshot) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveRiskSnapshot(ctx, snap); err != nil {
		m.logger.WarnContext(ctx, "persist risk state failed", slog.String("error", err.Error()))
	}
}

func runHooks(hooks []func(string), reason string) {
	for _, h := range hooks {
		h(reason)
	}
}

func dayOf(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
