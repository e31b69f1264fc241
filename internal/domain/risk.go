package domain

import "time"

// DailyStats accumulates trading results for one UTC calendar day.
type DailyStats struct {
	Date            string  `json:"date"`
	TradesExecuted  uint64  `json:"trades_executed"`
	TradesSucceeded uint64  `json:"trades_succeeded"`
	TradesFailed    uint64  `json:"trades_failed"`
	VolumeSOL       float64 `json:"volume_sol"`
	ProfitUSD       float64 `json:"profit_usd"`
	LossUSD         float64 `json:"loss_usd"`
}

// SessionStats accumulates trading results for the life of the process.
type SessionStats struct {
	StartedAt           time.Time `json:"started_at"`
	TotalTrades         uint64    `json:"total_trades"`
	TotalSucceeded      uint64    `json:"total_succeeded"`
	TotalFailed         uint64    `json:"total_failed"`
	TotalProfitUSD      float64   `json:"total_profit_usd"`
	TotalLossUSD        float64   `json:"total_loss_usd"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
}

// RiskStatus is a point-in-time snapshot of the risk manager.
type RiskStatus struct {
	KillSwitchActive    bool         `json:"kill_switch_active"`
	KillSwitchReason    string       `json:"kill_switch_reason,omitempty"`
	Daily               DailyStats   `json:"daily"`
	Session             SessionStats `json:"session"`
	DailyLossLimitUSD   float64      `json:"daily_loss_limit_usd"`
	RemainingBudgetUSD  float64      `json:"remaining_budget_usd"`
	SuccessRate         float64      `json:"success_rate"`
	MaxSOLPerTrade      float64      `json:"max_sol_per_trade"`
	ConsecutiveFailures uint32       `json:"consecutive_failures"`
}

// RiskAlertKind enumerates risk warnings.
type RiskAlertKind string

const (
	AlertHighLossRate         RiskAlertKind = "high_loss_rate"
	AlertDailyLossApproaching RiskAlertKind = "daily_loss_approaching"
	AlertConsecutiveFailures  RiskAlertKind = "consecutive_failures"
)

// RiskAlert is a non-blocking warning raised by the risk manager.
type RiskAlert struct {
	Kind    RiskAlertKind `json:"kind"`
	Message string        `json:"message"`
}

// RiskSnapshot is the persisted subset of risk state.
type RiskSnapshot struct {
	Daily               DailyStats `json:"daily"`
	ConsecutiveFailures uint32     `json:"consecutive_failures"`
	KillSwitch          bool       `json:"kill_switch"`
	KillSwitchReason    string     `json:"kill_switch_reason,omitempty"`
}
