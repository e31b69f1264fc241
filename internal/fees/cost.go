package fees

import (
	"github.com/shopspring/decimal"
)

// Lamport constants.
const (
	LamportsPerSOL          = 1_000_000_000
	LamportsPerSignature    = 5_000
	MicroLamportsPerLamport = 1_000_000
	minTipLamports          = 1_000
)

// Priority is the urgency tier derived from expected profit.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "urgent"
	}
}

// PriorityFromProfit maps expected USD profit to a Priority.
func PriorityFromProfit(profitUSD float64) Priority {
	switch {
	case profitUSD < 0.1:
		return PriorityLow
	case profitUSD < 1:
		return PriorityMedium
	case profitUSD < 10:
		return PriorityHigh
	default:
		return PriorityUrgent
	}
}

func (p Priority) tipMultiplier() decimal.Decimal {
	switch p {
	case PriorityLow:
		return decimal.NewFromInt(1)
	case PriorityMedium:
		return decimal.NewFromFloat(1.5)
	case PriorityHigh:
		return decimal.NewFromInt(2)
	default:
		return decimal.NewFromInt(3)
	}
}

func bundleMultiplier(bundleSize int) decimal.Decimal {
	switch {
	case bundleSize <= 1:
		return decimal.NewFromInt(1)
	case bundleSize == 2:
		return decimal.NewFromFloat(1.2)
	case bundleSize <= 5:
		return decimal.NewFromFloat(1.5)
	default:
		return decimal.NewFromInt(2)
	}
}

// NetworkFee is the base signature fee in lamports.
func NetworkFee(signatures int) uint64 {
	return uint64(signatures) * LamportsPerSignature
}

// PriorityFee converts a compute-unit price in micro-lamports into lamports
// for the given compute-unit limit.
func PriorityFee(computeUnitLimit uint32, microLamportsPerCU uint64) uint64 {
	fee := decimal.NewFromInt(int64(computeUnitLimit)).
		Mul(decimal.NewFromInt(int64(microLamportsPerCU))).
		Div(decimal.NewFromInt(MicroLamportsPerLamport))
	return uint64(fee.Ceil().IntPart())
}

// ComputeUnitPrice is the inverse of PriorityFee: the micro-lamport price per
// compute unit that spends feeLamports over computeUnitLimit units.
func ComputeUnitPrice(feeLamports uint64, computeUnitLimit uint32) uint64 {
	if computeUnitLimit == 0 {
		return 0
	}
	price := decimal.NewFromInt(int64(feeLamports)).
		Mul(decimal.NewFromInt(MicroLamportsPerLamport)).
		Div(decimal.NewFromInt(int64(computeUnitLimit)))
	return uint64(price.IntPart())
}

// DexFee is the venue fee on amount at feeBps.
func DexFee(amount uint64, feeBps uint16) uint64 {
	fee := decimal.NewFromInt(int64(amount)).
		Mul(decimal.NewFromInt(int64(feeBps))).
		Div(decimal.NewFromInt(10_000))
	return uint64(fee.IntPart())
}

// JitoTip scales baseTip by priority and bundle size, never below the
// minimum accepted tip.
func JitoTip(baseTip uint64, p Priority, bundleSize int) uint64 {
	tip := decimal.NewFromInt(int64(baseTip)).
		Mul(p.tipMultiplier()).
		Mul(bundleMultiplier(bundleSize))
	out := uint64(tip.IntPart())
	if out < minTipLamports {
		return minTipLamports
	}
	return out
}

// LamportsToUSD converts lamports at a SOL/USD price.
func LamportsToUSD(lamports int64, solPriceUSD float64) float64 {
	v, _ := decimal.NewFromInt(lamports).
		Div(decimal.NewFromInt(LamportsPerSOL)).
		Mul(decimal.NewFromFloat(solPriceUSD)).
		Float64()
	return v
}

// USDToLamports converts a USD amount at a SOL/USD price.
func USDToLamports(usd, solPriceUSD float64) int64 {
	if solPriceUSD <= 0 {
		return 0
	}
	return decimal.NewFromFloat(usd).
		Div(decimal.NewFromFloat(solPriceUSD)).
		Mul(decimal.NewFromInt(LamportsPerSOL)).
		IntPart()
}

// Breakdown itemizes the cost of landing one transaction.
type Breakdown struct {
	NetworkLamports  uint64 `json:"network_lamports"`
	PriorityLamports uint64 `json:"priority_lamports"`
	TipLamports      uint64 `json:"tip_lamports"`
	DexLamports      uint64 `json:"dex_lamports"`
}

// Total sums the breakdown.
func (b Breakdown) Total() uint64 {
	return b.NetworkLamports + b.PriorityLamports + b.TipLamports + b.DexLamports
}

// NetProfit subtracts every cost from the gross profit.
func NetProfit(grossLamports int64, b Breakdown) int64 {
	return decimal.NewFromInt(grossLamports).
		Sub(decimal.NewFromInt(int64(b.Total()))).
		IntPart()
}

// IsProfitableAfterFees reports whether the net profit clears minNetLamports.
func IsProfitableAfterFees(grossLamports int64, b Breakdown, minNetLamports int64) bool {
	return NetProfit(grossLamports, b) >= minNetLamports
}

// WithinFeeBudget reports whether total costs stay within maxFeeBps of the
// traded amount.
func WithinFeeBudget(amount uint64, b Breakdown, maxFeeBps uint16) bool {
	budget := decimal.NewFromInt(int64(amount)).
		Mul(decimal.NewFromInt(int64(maxFeeBps))).
		Div(decimal.NewFromInt(10_000))
	return decimal.NewFromInt(int64(b.Total())).LessThanOrEqual(budget)
}
