package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrSigningFailed = errors.New("signing failed")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrLockHeld      = errors.New("lock already held")

	// Risk admission.
	ErrKillSwitchActivated        = errors.New("kill switch activated")
	ErrPositionSizeExceeded       = errors.New("position size exceeded")
	ErrDailyLossLimitExceeded     = errors.New("daily loss limit exceeded")
	ErrTooManyConsecutiveFailures = errors.New("too many consecutive failures")
	ErrTradeWouldExceedDailyLimit = errors.New("trade would exceed daily loss limit")

	// Instruction builders and decoders.
	ErrAccountNotFound       = errors.New("account not found")
	ErrInvalidMint           = errors.New("invalid mint")
	ErrInvalidOwner          = errors.New("invalid owner")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrUnparseable           = errors.New("unparseable instruction")

	// Execution.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrDuplicate           = errors.New("duplicate opportunity")
	ErrOpportunityExpired  = errors.New("opportunity expired")
	ErrNoInstructions      = errors.New("opportunity has no instructions")
)

// IsRiskRejection reports whether err is one of the risk admission errors.
func IsRiskRejection(err error) bool {
	return errors.Is(err, ErrKillSwitchActivated) ||
		errors.Is(err, ErrPositionSizeExceeded) ||
		errors.Is(err, ErrDailyLossLimitExceeded) ||
		errors.Is(err, ErrTooManyConsecutiveFailures) ||
		errors.Is(err, ErrTradeWouldExceedDailyLimit)
}

// IsCandidateFatal reports whether err abandons a single candidate without
// affecting the pipeline.
func IsCandidateFatal(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInvalidMint) ||
		errors.Is(err, ErrInvalidOwner) ||
		errors.Is(err, ErrInsufficientLiquidity) ||
		errors.Is(err, ErrUnparseable)
}
