package handler

import (
	"net/http"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Stat sources. Any of them may be nil depending on the run mode.
type (
	ExecutorStatsSource interface {
		Statistics() domain.ExecutorStats
	}
	RouterStatsSource interface {
		Statistics() domain.RouterStats
	}
	ListenerStatsSource interface {
		Statistics() domain.ListenerStats
	}
	SimulationStatsSource interface {
		Statistics() domain.SimulationStats
	}
)

// StatsHandler serves pipeline counters.
type StatsHandler struct {
	Executor   ExecutorStatsSource
	Router     RouterStatsSource
	Listener   ListenerStatsSource
	Simulation SimulationStatsSource
}

// GetStats responds with one object per running stage.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, _ *http.Request) {
	out := map[string]any{}
	if h.Executor != nil {
		out["executor"] = h.Executor.Statistics()
	}
	if h.Router != nil {
		out["router"] = h.Router.Statistics()
	}
	if h.Listener != nil {
		out["listener"] = h.Listener.Statistics()
	}
	if h.Simulation != nil {
		out["simulation"] = h.Simulation.Statistics()
	}
	writeJSON(w, http.StatusOK, out)
}
