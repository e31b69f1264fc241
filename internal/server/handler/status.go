package handler

import (
	"net/http"
	"time"
)

// KillSwitchReader reports the kill switch state.
type KillSwitchReader interface {
	KillSwitchActive() bool
}

// StatusHandler serves process metadata for the dashboard.
type StatusHandler struct {
	mode       string
	version    string
	strategies []string
	startedAt  time.Time
	risk       KillSwitchReader
}

// NewStatusHandler creates a StatusHandler. risk may be nil in server-only
// mode.
func NewStatusHandler(mode, version string, strategies []string, startedAt time.Time, risk KillSwitchReader) *StatusHandler {
	return &StatusHandler{
		mode:       mode,
		version:    version,
		strategies: strategies,
		startedAt:  startedAt,
		risk:       risk,
	}
}

// GetStatus responds with mode, version, uptime and enabled strategies.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	killSwitch := false
	if h.risk != nil {
		killSwitch = h.risk.KillSwitchActive()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":               h.mode,
		"version":            h.version,
		"strategies":         h.strategies,
		"started_at":         h.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds":     int64(time.Since(h.startedAt).Seconds()),
		"kill_switch_active": killSwitch,
	})
}
