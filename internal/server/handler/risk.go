package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// RiskController is the risk manager surface exposed over HTTP.
type RiskController interface {
	Status() domain.RiskStatus
	CheckAlerts() []domain.RiskAlert
	ActivateKillSwitch(ctx context.Context, reason string)
	DeactivateKillSwitch(ctx context.Context)
}

// RiskHandler serves risk status and the manual kill switch.
type RiskHandler struct {
	risk   RiskController
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewRiskHandler creates a RiskHandler. audit may be nil.
func NewRiskHandler(risk RiskController, audit domain.AuditStore, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{
		risk:   risk,
		audit:  audit,
		logger: logger.With(slog.String("handler", "risk")),
	}
}

// GetRisk responds with the risk status and active alerts.
// GET /api/risk
func (h *RiskHandler) GetRisk(w http.ResponseWriter, _ *http.Request) {
	alerts := h.risk.CheckAlerts()
	if alerts == nil {
		alerts = []domain.RiskAlert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": h.risk.Status(),
		"alerts": alerts,
	})
}

type killSwitchRequest struct {
	Reason string `json:"reason"`
}

// ActivateKillSwitch halts trade admission.
// POST /api/risk/kill-switch
func (h *RiskHandler) ActivateKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req killSwitchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual activation via API"
	}
	h.risk.ActivateKillSwitch(r.Context(), reason)
	h.logger.WarnContext(r.Context(), "kill switch activated", slog.String("reason", reason))
	h.recordAudit(r.Context(), "kill_switch.activate", map[string]any{"reason": reason, "remote_addr": r.RemoteAddr})
	writeJSON(w, http.StatusOK, h.risk.Status())
}

// DeactivateKillSwitch resumes trade admission.
// DELETE /api/risk/kill-switch
func (h *RiskHandler) DeactivateKillSwitch(w http.ResponseWriter, r *http.Request) {
	h.risk.DeactivateKillSwitch(r.Context())
	h.logger.InfoContext(r.Context(), "kill switch cleared")
	h.recordAudit(r.Context(), "kill_switch.deactivate", map[string]any{"remote_addr": r.RemoteAddr})
	writeJSON(w, http.StatusOK, h.risk.Status())
}

func (h *RiskHandler) recordAudit(ctx context.Context, event string, detail map[string]any) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Log(ctx, event, detail); err != nil {
		h.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}
}
