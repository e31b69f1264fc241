package strategy

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var bpsDenominator = decimal.NewFromInt(10_000)

func udec(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// constantProductOut is the x*y=k output for amountIn against the given
// reserves, after an input-side fee in basis points.
func constantProductOut(amountIn, reserveIn, reserveOut uint64, feeBps uint16) uint64 {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0
	}
	in := udec(amountIn).
		Mul(bpsDenominator.Sub(decimal.NewFromInt(int64(feeBps)))).
		Div(bpsDenominator)
	rIn := udec(reserveIn)
	rOut := udec(reserveOut)
	out := in.Mul(rOut).Div(rIn.Add(in)).Floor()
	if !out.IsPositive() {
		return 0
	}
	return out.BigInt().Uint64()
}

// Reserves is a constant-product pool snapshot.
type Reserves struct {
	Base   uint64
	Quote  uint64
	FeeBps uint16
}

// swap returns the output and the reserves after trading amountIn of the
// base side (baseIn) or the quote side.
func (r Reserves) swap(amountIn uint64, baseIn bool) (uint64, Reserves) {
	next := r
	if baseIn {
		out := constantProductOut(amountIn, r.Base, r.Quote, r.FeeBps)
		next.Base += amountIn
		next.Quote -= out
		return out, next
	}
	out := constantProductOut(amountIn, r.Quote, r.Base, r.FeeBps)
	next.Quote += amountIn
	next.Base -= out
	return out, next
}
