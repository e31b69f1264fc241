package domain

import "time"

// LandingMode names a transaction submission path.
type LandingMode string

const (
	LandingJito   LandingMode = "jito"
	LandingDirect LandingMode = "direct"
)

// ExecutionOutcome labels how a submission attempt ended.
type ExecutionOutcome string

const (
	OutcomeLanded       ExecutionOutcome = "landed"
	OutcomeReverted     ExecutionOutcome = "reverted"
	OutcomeSubmitFailed ExecutionOutcome = "submit_failed"
	// OutcomeConfirmationTimeout means the on-chain result is unknown. It
	// counts as a failure for risk accounting but must not trigger a
	// resubmission.
	OutcomeConfirmationTimeout ExecutionOutcome = "confirmation_timeout"
	OutcomeSkipped             ExecutionOutcome = "skipped"
)

// ExecutionResult is the terminal record of one submission attempt.
type ExecutionResult struct {
	OpportunityID   string           `json:"opportunity_id"`
	Strategy        string           `json:"strategy"`
	Success         bool             `json:"success"`
	Signature       string           `json:"signature,omitempty"`
	Error           string           `json:"error,omitempty"`
	Outcome         ExecutionOutcome `json:"outcome"`
	LatencyMs       int64            `json:"latency_ms"`
	FeePaidLamports uint64           `json:"fee_paid_lamports"`
	TipLamports     uint64           `json:"tip_lamports"`
	LandedSlot      *uint64          `json:"landed_slot,omitempty"`
	LandingMode     LandingMode      `json:"landing_mode"`
	ProfitUSD       float64          `json:"profit_usd"`
	TradeSizeSOL    float64          `json:"trade_size_sol"`
	SubmittedAt     time.Time        `json:"submitted_at"`
}

// OutcomeUnknown reports whether the transaction may still land.
func (r ExecutionResult) OutcomeUnknown() bool {
	return r.Outcome == OutcomeConfirmationTimeout
}

// ConfirmationStatus is the commitment level reported for a signature.
type ConfirmationStatus string

const (
	StatusProcessed ConfirmationStatus = "processed"
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusFinalized ConfirmationStatus = "finalized"
)

// SignatureStatus is the chain's view of a submitted signature. A nil
// *SignatureStatus from the chain client means the signature is not known yet.
type SignatureStatus struct {
	Slot               uint64
	Err                string
	ConfirmationStatus ConfirmationStatus
}

// Terminal reports whether the status is final enough to stop polling.
func (s SignatureStatus) Terminal() bool {
	if s.Err != "" {
		return true
	}
	return s.ConfirmationStatus == StatusConfirmed || s.ConfirmationStatus == StatusFinalized
}

// Blockhash is a recent blockhash with its validity horizon.
type Blockhash struct {
	Hash                 string
	LastValidBlockHeight uint64
}
