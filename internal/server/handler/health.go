package handler

import (
	"net/http"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// HealthSource produces an engine health snapshot.
type HealthSource interface {
	Snapshot() domain.EngineHealth
}

// HealthHandler serves the aggregated component health.
type HealthHandler struct {
	source HealthSource
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(source HealthSource) *HealthHandler {
	return &HealthHandler{source: source}
}

// HealthCheck answers 200 when every component is healthy and 503
// otherwise, with the snapshot as the body either way.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	snap := h.source.Snapshot()
	status := http.StatusOK
	if !snap.OverallHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, snap)
}
