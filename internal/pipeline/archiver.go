package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Archiver exports execution history and audit rows older than the
// retention window to cold storage.
type Archiver struct {
	blob      domain.Archiver
	retention time.Duration
	lock      domain.LockManager
	lockTTL   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// archiveLockKey serializes archive runs across replicas.
const archiveLockKey = "archive"

// NewArchiver creates an Archiver keeping retentionDays of history hot.
func NewArchiver(blob domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Archiver{
		blob:      blob,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		lockTTL:   30 * time.Minute,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// WithLock makes each run hold a distributed lock. A run that finds the
// lock held by another replica is skipped.
func (a *Archiver) WithLock(lock domain.LockManager, ttl time.Duration) *Archiver {
	a.lock = lock
	if ttl > 0 {
		a.lockTTL = ttl
	}
	return a
}

// Run archives everything older than the retention cutoff once.
func (a *Archiver) Run(ctx context.Context) error {
	if a.lock != nil {
		unlock, err := a.lock.Acquire(ctx, archiveLockKey, a.lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.Info("archive run skipped, lock held elsewhere")
			return nil
		}
		if err != nil {
			return fmt.Errorf("acquiring archive lock: %w", err)
		}
		defer unlock()
	}

	cutoff := a.now().UTC().Add(-a.retention)

	execs, err := a.blob.ArchiveExecutions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving executions before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	audits, err := a.blob.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving audit before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	a.logger.Info("archive run complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("executions", execs),
		slog.Int64("audit_entries", audits),
	)
	return nil
}

// RunCron runs the archiver on a five-field cron schedule (minute hour
// day-of-month month day-of-week, UTC) until ctx is cancelled. Fields accept
// "*", lists, ranges and "*/n" steps.
func (a *Archiver) RunCron(ctx context.Context, expr string) error {
	sched, err := parseCron(expr)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", expr, err)
	}

	for {
		next, ok := sched.next(a.now().UTC())
		if !ok {
			return fmt.Errorf("cron expression %q never fires", expr)
		}
		wait := time.Until(next)
		a.logger.Debug("archiver sleeping", slog.Time("next_run", next), slog.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronField is a bitmask of the values a field matches.
type cronField uint64

func (f cronField) has(v int) bool { return f&(1<<uint(v)) != 0 }

type schedule struct {
	minute, hour, dom, month, dow cronField
}

func (s schedule) matches(t time.Time) bool {
	return s.minute.has(t.Minute()) &&
		s.hour.has(t.Hour()) &&
		s.dom.has(t.Day()) &&
		s.month.has(int(t.Month())) &&
		s.dow.has(int(t.Weekday()))
}

// next returns the first minute strictly after t that matches, searching at
// most one year ahead.
func (s schedule) next(t time.Time) (time.Time, bool) {
	c := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(1, 0, 1)
	for c.Before(limit) {
		if s.matches(c) {
			return c, true
		}
		c = c.Add(time.Minute)
	}
	return time.Time{}, false
}

func parseCron(expr string) (schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return schedule{}, fmt.Errorf("want 5 fields, got %d", len(fields))
	}
	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	var parsed [5]cronField
	for i, f := range fields {
		v, err := parseField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return schedule{}, fmt.Errorf("field %d %q: %w", i+1, f, err)
		}
		parsed[i] = v
	}
	return schedule{minute: parsed[0], hour: parsed[1], dom: parsed[2], month: parsed[3], dow: parsed[4]}, nil
}

func parseField(field string, lo, hi int) (cronField, error) {
	var out cronField
	for _, part := range strings.Split(field, ",") {
		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("bad step %q", s)
			}
			step = n
			part = base
		}

		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return 0, fmt.Errorf("bad range start %q", a)
			}
			if to, err = strconv.Atoi(b); err != nil {
				return 0, fmt.Errorf("bad range end %q", b)
			}
		default:
			n, err := strconv.Atoi(part)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", part)
			}
			from, to = n, n
		}
		if from < lo || to > hi || from > to {
			return 0, fmt.Errorf("%d-%d outside %d-%d", from, to, lo, hi)
		}
		for v := from; v <= to; v += step {
			out |= 1 << uint(v)
		}
	}
	return out, nil
}
