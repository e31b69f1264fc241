// Package notify fans operator alerts out to chat channels. Kill switch
// activations, risk alerts and failed executions are the only events the
// bot reports; everything else goes to the logs.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Event types accepted by the notifier's filter.
const (
	EventKillSwitch      = "kill_switch"
	EventRiskAlert       = "risk_alert"
	EventExecutionFailed = "execution_failed"
)

// Sender delivers one message to a chat channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to every registered Sender. Events not in the allow
// list are dropped; an empty list allows everything.
type Notifier struct {
	senders  []Sender
	events   map[string]bool
	cooldown time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time

	logger *slog.Logger
}

// NewNotifier creates a Notifier. Repeated risk alerts of the same kind are
// suppressed for cooldown.
func NewNotifier(senders []Sender, events []string, cooldown time.Duration, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders:  senders,
		events:   allowed,
		cooldown: cooldown,
		timeout:  10 * time.Second,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
		logger:   logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Notify sends to all senders if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// KillSwitchActivated matches risk.Manager.OnKillSwitch. It is called from
// the trading path, so delivery happens on its own goroutine.
func (n *Notifier) KillSwitchActivated(reason string) {
	if !n.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		_ = n.Notify(ctx, EventKillSwitch, "Kill switch activated", reason)
	}()
}

// RiskAlerts sends each alert whose kind has not fired within the cooldown.
func (n *Notifier) RiskAlerts(ctx context.Context, alerts []domain.RiskAlert) error {
	var errs []string
	for _, a := range alerts {
		if !n.admit(string(a.Kind)) {
			continue
		}
		if err := n.Notify(ctx, EventRiskAlert, "Risk alert: "+string(a.Kind), a.Message); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: risk alerts: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Handle implements domain.ResultSink. Only failed executions are reported.
func (n *Notifier) Handle(ctx context.Context, rec domain.ExecutionRecord) error {
	r := rec.Result
	if r.Success || r.Outcome == domain.OutcomeSkipped {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "strategy: %s\nopportunity: %s\noutcome: %s", rec.Opportunity.Strategy, rec.Opportunity.ID, r.Outcome)
	if r.Signature != "" {
		fmt.Fprintf(&b, "\nsignature: %s", r.Signature)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "\nerror: %s", r.Error)
	}
	fmt.Fprintf(&b, "\ncost: %d lamports", r.FeePaidLamports+r.TipLamports)
	return n.Notify(ctx, EventExecutionFailed, "Execution failed", b.String())
}

func (n *Notifier) admit(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.cooldown {
		return false
	}
	n.lastSent[key] = now
	return true
}

// dispatch tries every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

var _ domain.ResultSink = (*Notifier)(nil)
