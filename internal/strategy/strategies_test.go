package strategy

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// tableQuoter multiplies the input by a per-(venue, from, to) factor.
type tableQuoter map[[3]string]float64

func (q tableQuoter) Quote(_ context.Context, venue, from, to string, amountIn uint64) (*Quote, error) {
	f, ok := q[[3]string{venue, from, to}]
	if !ok {
		return nil, nil
	}
	return &Quote{Venue: venue, Pool: venue + ":" + from + "/" + to, AmountOut: uint64(float64(amountIn) * f)}, nil
}

func swapIx(amountIn uint64) domain.DecodedInstruction {
	return domain.DecodedInstruction{
		Kind:      domain.InstructionSwap,
		ProgramID: RaydiumAMMProgram,
		TokenIn:   "X",
		TokenOut:  "Y",
		AmountIn:  amountIn,
		Pool:      "pool-1",
	}
}

func TestArbitrageAcceptsThreshold(t *testing.T) {
	a := NewArbitrage(ArbitrageConfig{}, tableQuoter{}, discard())
	assert.True(t, a.Accepts(swapIx(1_000_001)))
	assert.False(t, a.Accepts(swapIx(1_000_000)))
	assert.False(t, a.Accepts(domain.DecodedInstruction{Kind: domain.InstructionTransfer, AmountIn: 5_000_000}))
}

func TestArbitrageTwoVenueRoute(t *testing.T) {
	q := tableQuoter{
		{"orca", "X", "Y"}:    1.0,
		{"raydium", "Y", "X"}: 1.25,
		{"raydium", "X", "Y"}: 0.5,
		{"orca", "Y", "X"}:    0.5,
	}
	a := NewArbitrage(ArbitrageConfig{Venues: []string{"orca", "raydium"}, PriorityFeeLamports: 1_000}, q, discard())

	opp, err := a.Analyze(context.Background(), domain.Candidate{Signature: "s"}, swapIx(2_000_000_000))
	require.NoError(t, err)
	require.NotNil(t, opp)
	assert.Equal(t, []string{"orca", "raydium"}, opp.Venues())
	// 2.5 SOL back on 2 SOL, minus two signatures and the priority fee
	assert.Equal(t, int64(500_000_000-11_000), opp.ExpectedProfitLamports)
	assert.InDelta(t, 0.499989*150, opp.ExpectedProfitUSD, 1e-6)
	assert.True(t, opp.FlashLoanRequired)
	assert.Equal(t, uint32(800_000), opp.ComputeUnitLimit)
	assert.Equal(t, "s", opp.SourceSignature)
	assert.NotEmpty(t, opp.ID)
}

func TestArbitrageTradeSizeUsesPricer(t *testing.T) {
	q := tableQuoter{
		{"orca", "X", "Y"}:    1.0,
		{"raydium", "Y", "X"}: 1.25,
	}
	// config price and pricer price disagree; the pricer wins for both sides
	a := NewArbitrage(ArbitrageConfig{Venues: []string{"orca", "raydium"}, SOLPriceUSD: 150}, q, discard(),
		WithPricer(SOLPricer{PriceUSD: 300}))

	opp, err := a.Analyze(context.Background(), domain.Candidate{Signature: "s"}, swapIx(1_000_000_000))
	require.NoError(t, err)
	require.NotNil(t, opp)
	assert.InDelta(t, 1.0, opp.TradeSizeSOL, 1e-9)
	assert.InDelta(t, float64(opp.ExpectedProfitLamports)/1e9*300, opp.ExpectedProfitUSD, 1e-6)
}

func TestSOLAmount(t *testing.T) {
	assert.InDelta(t, 2.5, SOLAmount(SOLPricer{PriceUSD: 42}, "any", 2_500_000_000), 1e-12)
	assert.True(t, math.IsInf(SOLAmount(SOLPricer{}, "any", 2_500_000_000), 1))
}

func TestArbitrageNoProfit(t *testing.T) {
	q := tableQuoter{
		{"orca", "X", "Y"}:    1.0,
		{"raydium", "Y", "X"}: 1.0,
	}
	a := NewArbitrage(ArbitrageConfig{Venues: []string{"orca", "raydium"}}, q, discard())
	opp, err := a.Analyze(context.Background(), domain.Candidate{}, swapIx(5_000_000))
	require.NoError(t, err)
	assert.Nil(t, opp)
}

func TestArbitrageTriangularRoute(t *testing.T) {
	q := tableQuoter{
		{"orca", "X", USDCMint}: 2.0,
		{"orca", USDCMint, "Y"}: 1.0,
		{"raydium", "Y", "X"}:   0.75,
		{"orca", "X", "Y"}:      1.0,
		{"orca", "Y", "X"}:      0.5,
		{"raydium", "X", "Y"}:   1.0,
	}
	a := NewArbitrage(ArbitrageConfig{Venues: []string{"orca", "raydium"}, MaxHops: 3}, q, discard())
	opp, err := a.Analyze(context.Background(), domain.Candidate{}, swapIx(10_000_000))
	require.NoError(t, err)
	require.NotNil(t, opp)
	require.Len(t, opp.Route, 3)
	assert.Equal(t, "orca:"+USDCMint+"/Y", opp.Route[1].Pool)
	assert.Equal(t, uint64(15_000_000), opp.Route[2].AmountOut)
	assert.Equal(t, int64(5_000_000-15_000), opp.ExpectedProfitLamports)
	assert.False(t, opp.FlashLoanRequired)
}

type failingResolver struct{}

func (failingResolver) MintOf(context.Context, string) (string, error) {
	return "", domain.ErrInvalidOwner
}

func TestArbitrageResolverErrorIsCandidateFatal(t *testing.T) {
	a := NewArbitrage(ArbitrageConfig{Venues: []string{"a"}}, tableQuoter{}, discard(), WithMintResolver(failingResolver{}))
	_, err := a.Analyze(context.Background(), domain.Candidate{}, swapIx(5_000_000))
	assert.True(t, domain.IsCandidateFatal(err))
}

type staticPools map[string]Reserves

func (p staticPools) Reserves(_ context.Context, pool string) (Reserves, error) {
	r, ok := p[pool]
	if !ok {
		return Reserves{}, domain.ErrAccountNotFound
	}
	return r, nil
}

func TestSandwichPlansAroundTarget(t *testing.T) {
	pools := staticPools{"pool-1": {Base: 100_000_000_000, Quote: 100_000_000_000, FeeBps: 25}}
	s := NewSandwich(SandwichConfig{MinTargetSizeUSD: 1}, pools, nil, discard())

	target := swapIx(10_000_000_000)
	require.True(t, s.Accepts(target))
	assert.False(t, s.Accepts(swapIx(999_999)))

	opp, err := s.Analyze(context.Background(), domain.Candidate{Signature: "victim"}, target)
	require.NoError(t, err)
	require.NotNil(t, opp)
	assert.Equal(t, domain.KindSandwich, opp.Kind)
	require.Len(t, opp.Route, 2)
	assert.LessOrEqual(t, opp.AmountIn, uint64(1_000_000_000))
	assert.Positive(t, opp.ExpectedProfitLamports)
	assert.Greater(t, opp.Route[1].AmountOut, opp.Route[0].AmountIn)
}

func TestSandwichRespectsTargetMinOut(t *testing.T) {
	r := Reserves{Base: 100_000_000_000, Quote: 100_000_000_000, FeeBps: 25}
	s := NewSandwich(SandwichConfig{}, staticPools{"pool-1": r}, nil, discard())

	target := swapIx(10_000_000_000)
	target.MinOut = constantProductOut(target.AmountIn, r.Base, r.Quote, r.FeeBps)

	opp, err := s.Analyze(context.Background(), domain.Candidate{}, target)
	require.NoError(t, err)
	assert.Nil(t, opp)
}

func TestSandwichMissingPool(t *testing.T) {
	s := NewSandwich(SandwichConfig{}, staticPools{}, nil, discard())
	_, err := s.Analyze(context.Background(), domain.Candidate{}, swapIx(10))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	noPool := swapIx(10)
	noPool.Pool = ""
	_, err = s.Analyze(context.Background(), domain.Candidate{}, noPool)
	assert.ErrorIs(t, err, domain.ErrUnparseable)
}

type staticPositions map[string][]Position

func (p staticPositions) Positions(_ context.Context, protocol string) ([]Position, error) {
	if protocol == "broken" {
		return nil, errors.New("rpc timeout")
	}
	return p[protocol], nil
}

func TestLiquidationPicksBestNetBonus(t *testing.T) {
	positions := staticPositions{
		"solend": {
			{Address: "healthy", Protocol: "solend", DebtAmount: 50_000_000_000, HealthFactor: 1.2, LiquidationBonusBps: 500},
			{Address: "small", Protocol: "solend", DebtAmount: 4_000_000_000, HealthFactor: 0.9, LiquidationBonusBps: 1_000},
		},
		"marginfi": {
			{Address: "big", Protocol: "marginfi", DebtAmount: 10_000_000_000, HealthFactor: 0.8, LiquidationBonusBps: 500},
		},
	}
	l := NewLiquidation(LiquidationConfig{Enabled: true, Protocols: []string{"solend", "marginfi"}}, positions, nil, discard())

	assert.True(t, l.Accepts(domain.DecodedInstruction{Kind: domain.InstructionTransfer}))
	assert.False(t, l.Accepts(swapIx(1)))

	opp, err := l.Analyze(context.Background(), domain.Candidate{}, domain.DecodedInstruction{})
	require.NoError(t, err)
	require.NotNil(t, opp)
	assert.Equal(t, "big", opp.Route[0].Pool)
	// half of 10 SOL repaid, 5% bonus, minus the base fee
	assert.Equal(t, uint64(5_000_000_000), opp.AmountIn)
	assert.Equal(t, int64(250_000_000-5_000), opp.ExpectedProfitLamports)
}

func TestLiquidationDisabledAndErrors(t *testing.T) {
	off := NewLiquidation(LiquidationConfig{}, staticPositions{}, nil, discard())
	assert.False(t, off.Accepts(domain.DecodedInstruction{Kind: domain.InstructionTransfer}))

	broken := NewLiquidation(LiquidationConfig{Enabled: true, Protocols: []string{"broken"}}, staticPositions{}, nil, discard())
	_, err := broken.Analyze(context.Background(), domain.Candidate{}, domain.DecodedInstruction{})
	assert.ErrorContains(t, err, "rpc timeout")
}

func TestRegistryOrdersByKind(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewLiquidation(LiquidationConfig{}, staticPositions{}, nil, discard())))
	require.NoError(t, r.Register(NewSandwich(SandwichConfig{}, staticPools{}, nil, discard())))
	require.NoError(t, r.Register(NewArbitrage(ArbitrageConfig{}, tableQuoter{}, discard())))

	var kinds []domain.OpportunityKind
	for _, s := range r.Ordered() {
		kinds = append(kinds, s.Kind())
	}
	assert.Equal(t, []domain.OpportunityKind{domain.KindArbitrage, domain.KindSandwich, domain.KindLiquidation}, kinds)
	assert.Equal(t, []string{"arbitrage", "liquidation", "sandwich"}, r.List())

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
