package domain

// SimulationResult is the outcome of running an Opportunity through the
// simulation gate.
type SimulationResult struct {
	OpportunityID          string   `json:"opportunity_id"`
	Success                bool     `json:"success"`
	IsProfitable           bool     `json:"is_profitable"`
	ExpectedProfitLamports int64    `json:"expected_profit_lamports"`
	ExpectedProfitUSD      float64  `json:"expected_profit_usd"`
	SlippageBps            uint16   `json:"slippage_bps"`
	ComputeUnitsConsumed   uint64   `json:"compute_units_consumed"`
	FeeEstimateLamports    uint64   `json:"fee_estimate_lamports"`
	Reason                 string   `json:"reason,omitempty"`
	Logs                   []string `json:"logs,omitempty"`
}

// SimulationOutcome is what a chain simulation endpoint reports for a
// transaction.
type SimulationOutcome struct {
	Err           string
	Logs          []string
	UnitsConsumed uint64
}
