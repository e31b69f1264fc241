package handler

import (
	"net/http"
	"strconv"

	"github.com/alanyoungcy/mevbot/internal/fees"
)

// FeeSource is the estimator surface served over HTTP.
type FeeSource interface {
	Stats() fees.Stats
	OptimalFee(urgency float64) uint64
	PredictNextFee() uint64
}

// FeesHandler serves priority fee estimates.
type FeesHandler struct {
	source FeeSource
}

// NewFeesHandler creates a FeesHandler.
func NewFeesHandler(source FeeSource) *FeesHandler {
	return &FeesHandler{source: source}
}

// GetFees responds with window stats, the optimal fee at ?urgency= (0..1,
// default 0.5) and the trend prediction.
// GET /api/fees
func (h *FeesHandler) GetFees(w http.ResponseWriter, r *http.Request) {
	urgency := 0.5
	if v := r.URL.Query().Get("urgency"); v != "" {
		u, err := strconv.ParseFloat(v, 64)
		if err != nil || u < 0 || u > 1 {
			writeError(w, http.StatusBadRequest, "urgency must be a number in [0,1]")
			return
		}
		urgency = u
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window":    h.source.Stats(),
		"urgency":   urgency,
		"optimal":   h.source.OptimalFee(urgency),
		"predicted": h.source.PredictNextFee(),
	})
}
