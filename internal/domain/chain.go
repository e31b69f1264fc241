package domain

import "context"

// AccountInfo is the subset of on-chain account state the core consumes.
type AccountInfo struct {
	Pubkey   string
	Owner    string
	Lamports uint64
	Data     []byte
}

// ChainClient is the RPC surface used by the simulation gate and executor.
// Implementations must be safe for concurrent use.
type ChainClient interface {
	LatestBlockhash(ctx context.Context) (Blockhash, error)
	SendTransaction(ctx context.Context, rawTx []byte) (string, error)
	SignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)
	SimulateTransaction(ctx context.Context, rawTx []byte) (SimulationOutcome, error)
	GetAccount(ctx context.Context, pubkey string) (AccountInfo, error)
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error)
}

// BundleSender submits transaction bundles to a block engine.
type BundleSender interface {
	SendBundle(ctx context.Context, rawTxs [][]byte) (string, error)
}

// Signer signs transaction messages without exposing key material.
type Signer interface {
	PublicKey() string
	Sign(message []byte) ([]byte, error)
}

// InstructionBuilder builds protocol-specific swap instructions. Failures use
// ErrAccountNotFound, ErrInvalidMint, ErrInvalidOwner or
// ErrInsufficientLiquidity.
type InstructionBuilder interface {
	Build(ctx context.Context, req SwapRequest) ([]Instruction, float64, error)
}

// SwapDirection is buy or sell relative to the quote asset.
type SwapDirection string

const (
	DirectionBuy  SwapDirection = "buy"
	DirectionSell SwapDirection = "sell"
)

// SwapRequest is the input to an InstructionBuilder.
type SwapRequest struct {
	Direction   SwapDirection
	Mint        string
	PoolRefs    []string
	Amount      uint64
	SlippageBps uint16
}

// Decoder turns raw instruction bytes into a typed instruction.
type Decoder interface {
	Decode(ix Instruction) (DecodedInstruction, error)
}

// FeeObservation is one per-slot priority fee sample in micro-lamports per
// compute unit.
type FeeObservation struct {
	Slot uint64
	Fee  uint64
}

// FeeSource reports recently observed priority fees.
type FeeSource interface {
	RecentPrioritizationFees(ctx context.Context, accounts []string) ([]FeeObservation, error)
}
