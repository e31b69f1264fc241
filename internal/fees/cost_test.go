package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityFromProfit(t *testing.T) {
	assert.Equal(t, PriorityLow, PriorityFromProfit(0.05))
	assert.Equal(t, PriorityMedium, PriorityFromProfit(0.5))
	assert.Equal(t, PriorityHigh, PriorityFromProfit(5))
	assert.Equal(t, PriorityUrgent, PriorityFromProfit(50))
}

func TestJitoTip(t *testing.T) {
	assert.Equal(t, uint64(10_000), JitoTip(10_000, PriorityLow, 1))
	assert.Equal(t, uint64(24_000), JitoTip(10_000, PriorityHigh, 2))
	assert.Equal(t, uint64(60_000), JitoTip(10_000, PriorityUrgent, 8))
	assert.Equal(t, uint64(1_000), JitoTip(10, PriorityLow, 1), "minimum tip")
}

func TestPriorityFeeRoundTrip(t *testing.T) {
	assert.Equal(t, uint64(4_000), PriorityFee(200_000, 20_000))
	assert.Equal(t, uint64(20_000), ComputeUnitPrice(4_000, 200_000))
	assert.Equal(t, uint64(0), ComputeUnitPrice(4_000, 0))
}

func TestNetProfitAndBudget(t *testing.T) {
	b := Breakdown{
		NetworkLamports:  NetworkFee(2),
		PriorityLamports: 4_000,
		TipLamports:      1_000,
		DexLamports:      DexFee(1_000_000, 30),
	}
	assert.Equal(t, uint64(3_000), b.DexLamports)
	assert.Equal(t, uint64(18_000), b.Total())
	assert.Equal(t, int64(2_000), NetProfit(20_000, b))
	assert.True(t, IsProfitableAfterFees(20_000, b, 1))
	assert.False(t, IsProfitableAfterFees(18_000, b, 1))

	assert.True(t, WithinFeeBudget(1_000_000, b, 200))
	assert.False(t, WithinFeeBudget(1_000_000, b, 100))
}

func TestLamportConversions(t *testing.T) {
	assert.InDelta(t, 150.0, LamportsToUSD(LamportsPerSOL, 150), 1e-9)
	assert.Equal(t, int64(LamportsPerSOL/2), USDToLamports(75, 150))
	assert.Equal(t, int64(0), USDToLamports(75, 0))
}
