package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/chain"
	"github.com/alanyoungcy/mevbot/internal/domain"
	"github.com/alanyoungcy/mevbot/internal/fees"
)

type fakeChain struct {
	mu       sync.Mutex
	statuses []*domain.SignatureStatus
	polls    int
	sent     [][]byte
	sendErr  error
}

func (f *fakeChain) LatestBlockhash(context.Context) (domain.Blockhash, error) {
	return domain.Blockhash{Hash: solana.Hash{7, 7, 7}.String(), LastValidBlockHeight: 100}, nil
}

func (f *fakeChain) SendTransaction(_ context.Context, raw []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, raw)
	return "sig", nil
}

func (f *fakeChain) SignatureStatus(context.Context, string) (*domain.SignatureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if len(f.statuses) == 0 {
		return nil, nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeChain) SimulateTransaction(context.Context, []byte) (domain.SimulationOutcome, error) {
	return domain.SimulationOutcome{}, nil
}

func (f *fakeChain) GetAccount(context.Context, string) (domain.AccountInfo, error) {
	return domain.AccountInfo{}, domain.ErrAccountNotFound
}

func (f *fakeChain) GetMultipleAccounts(_ context.Context, keys []string) ([]*domain.AccountInfo, error) {
	return make([]*domain.AccountInfo, len(keys)), nil
}

type fakeBundles struct {
	bundles [][][]byte
	err     error
}

func (f *fakeBundles) SendBundle(_ context.Context, txs [][]byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.bundles = append(f.bundles, txs)
	return "bundle-1", nil
}

type fixedTip struct{ pk solana.PublicKey }

func (f fixedTip) TipAccount() solana.PublicKey { return f.pk }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSigner(t *testing.T) *chain.KeypairSigner {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return chain.NewKeypairSignerFromKey(key)
}

func randomKey(t *testing.T) solana.PublicKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key.PublicKey()
}

func testOpportunity(t *testing.T, id string) domain.Opportunity {
	t.Helper()
	return domain.Opportunity{
		ID:                id,
		Kind:              domain.KindArbitrage,
		Strategy:          "arbitrage",
		ExpectedProfitUSD: 5,
		TradeSizeSOL:      0.5,
		ComputeUnitPrice:  1_000,
		DetectedAt:        time.Now(),
		TTL:               time.Minute,
		Instructions: []domain.Instruction{{
			ProgramID: solana.SystemProgramID.String(),
			Accounts:  []domain.AccountMeta{{Pubkey: randomKey(t).String(), IsWritable: true}},
			Data:      []byte{1, 2, 3},
		}},
	}
}

func fastConfig() Config {
	return Config{ConfirmAttempts: 3, ConfirmInterval: time.Millisecond}
}

func TestSubmitLandsDirect(t *testing.T) {
	fc := &fakeChain{statuses: []*domain.SignatureStatus{
		nil,
		{Slot: 42, ConfirmationStatus: domain.StatusConfirmed},
	}}
	exec := New(fastConfig(), fc, newSigner(t), NewDirectLanding(fc), nil, discard())

	res := exec.Submit(context.Background(), testOpportunity(t, "opp-1"))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.OutcomeLanded, res.Outcome)
	assert.Equal(t, domain.LandingDirect, res.LandingMode)
	require.NotNil(t, res.LandedSlot)
	assert.Equal(t, uint64(42), *res.LandedSlot)
	// 5000 signature fee + 200k CU at 1000 micro-lamports
	assert.Equal(t, uint64(5_200), res.FeePaidLamports)
	assert.Zero(t, res.TipLamports)

	require.Len(t, fc.sent, 1)
	tx, err := solana.TransactionFromBytes(fc.sent[0])
	require.NoError(t, err)
	assert.Equal(t, res.Signature, tx.Signatures[0].String())
	// limit + price + payload
	assert.Len(t, tx.Message.Instructions, 3)

	stats := exec.Statistics()
	assert.Equal(t, uint64(1), stats.TransactionsSubmitted)
	assert.Equal(t, uint64(1), stats.TransactionsSucceeded)
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-9)
}

func TestSubmitReverted(t *testing.T) {
	fc := &fakeChain{statuses: []*domain.SignatureStatus{
		{Slot: 9, Err: "InstructionError", ConfirmationStatus: domain.StatusProcessed},
	}}
	exec := New(fastConfig(), fc, newSigner(t), NewDirectLanding(fc), nil, discard())

	res := exec.Submit(context.Background(), testOpportunity(t, "opp-r"))
	assert.False(t, res.Success)
	assert.Equal(t, domain.OutcomeReverted, res.Outcome)
	require.NotNil(t, res.LandedSlot)
	assert.Equal(t, uint64(9), *res.LandedSlot)
	assert.Contains(t, res.Error, "InstructionError")
}

func TestSubmitConfirmationTimeoutIsNotResubmitted(t *testing.T) {
	fc := &fakeChain{}
	exec := New(fastConfig(), fc, newSigner(t), NewDirectLanding(fc), nil, discard())

	res := exec.Submit(context.Background(), testOpportunity(t, "opp-t"))
	assert.False(t, res.Success)
	assert.Equal(t, domain.OutcomeConfirmationTimeout, res.Outcome)
	assert.Equal(t, "confirmation timeout", res.Error)
	assert.True(t, res.OutcomeUnknown())
	assert.Nil(t, res.LandedSlot)
	assert.Len(t, fc.sent, 1)
	assert.Equal(t, 3, fc.polls)

	stats := exec.Statistics()
	assert.Equal(t, uint64(1), stats.ConfirmationTimeouts)
	assert.Equal(t, uint64(1), stats.TransactionsFailed)
	assert.Equal(t, uint64(1), exec.HealthCheck().ErrorCount)
}

func TestSubmitFailure(t *testing.T) {
	fc := &fakeChain{sendErr: errors.New("node unavailable")}
	exec := New(fastConfig(), fc, newSigner(t), NewDirectLanding(fc), nil, discard())

	res := exec.Submit(context.Background(), testOpportunity(t, "opp-f"))
	assert.Equal(t, domain.OutcomeSubmitFailed, res.Outcome)
	assert.Contains(t, res.Error, "node unavailable")
	assert.Zero(t, fc.polls)
	assert.Zero(t, res.FeePaidLamports)
	assert.Zero(t, res.TipLamports)
}

func TestSubmitBundleFailureChargesNoTip(t *testing.T) {
	fc := &fakeChain{}
	bundles := &fakeBundles{err: errors.New("bundle rejected")}
	landing := NewJitoLanding(bundles, fixedTip{pk: randomKey(t)}, 10_000, 0)
	exec := New(fastConfig(), fc, newSigner(t), landing, nil, discard())

	res := exec.Submit(context.Background(), testOpportunity(t, "opp-jf"))
	assert.Equal(t, domain.OutcomeSubmitFailed, res.Outcome)
	assert.Zero(t, res.FeePaidLamports)
	assert.Zero(t, res.TipLamports)
	assert.Zero(t, fc.polls)
}

func TestSubmitDedupsOnSourceSignature(t *testing.T) {
	fc := &fakeChain{statuses: []*domain.SignatureStatus{{Slot: 1, ConfirmationStatus: domain.StatusConfirmed}}}
	exec := New(fastConfig(), fc, newSigner(t), NewDirectLanding(fc), nil, discard())

	first := testOpportunity(t, "opp-a")
	first.SourceSignature = "victim-sig"
	second := testOpportunity(t, "opp-b")
	second.SourceSignature = "victim-sig"

	assert.Equal(t, domain.OutcomeLanded, exec.Submit(context.Background(), first).Outcome)
	res := exec.Submit(context.Background(), second)
	assert.Equal(t, domain.OutcomeSkipped, res.Outcome)
	assert.Equal(t, domain.ErrDuplicate.Error(), res.Error)
	assert.Len(t, fc.sent, 1)
}

func TestSubmitSkips(t *testing.T) {
	fc := &fakeChain{statuses: []*domain.SignatureStatus{{Slot: 1, ConfirmationStatus: domain.StatusFinalized}}}
	exec := New(fastConfig(), fc, newSigner(t), NewDirectLanding(fc), nil, discard())

	empty := testOpportunity(t, "empty")
	empty.Instructions = nil
	res := exec.Submit(context.Background(), empty)
	assert.Equal(t, domain.OutcomeSkipped, res.Outcome)
	assert.Equal(t, domain.ErrNoInstructions.Error(), res.Error)

	expired := testOpportunity(t, "expired")
	expired.DetectedAt = time.Now().Add(-time.Hour)
	res = exec.Submit(context.Background(), expired)
	assert.Equal(t, domain.OutcomeSkipped, res.Outcome)
	assert.Equal(t, domain.ErrOpportunityExpired.Error(), res.Error)

	first := exec.Submit(context.Background(), testOpportunity(t, "same"))
	assert.Equal(t, domain.OutcomeLanded, first.Outcome)
	again := exec.Submit(context.Background(), testOpportunity(t, "same"))
	assert.Equal(t, domain.OutcomeSkipped, again.Outcome)
	assert.Equal(t, domain.ErrDuplicate.Error(), again.Error)

	assert.Equal(t, uint64(1), exec.Statistics().TransactionsSubmitted)
	assert.Len(t, fc.sent, 1)
}

func TestSubmitJitoAppendsTip(t *testing.T) {
	fc := &fakeChain{statuses: []*domain.SignatureStatus{{Slot: 5, ConfirmationStatus: domain.StatusConfirmed}}}
	bundles := &fakeBundles{}
	tipAccount := randomKey(t)
	landing := NewJitoLanding(bundles, fixedTip{pk: tipAccount}, 10_000, 0)
	exec := New(fastConfig(), fc, newSigner(t), landing, nil, discard())

	opp := testOpportunity(t, "opp-j")
	res := exec.Submit(context.Background(), opp)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, domain.LandingJito, res.LandingMode)

	wantTip := fees.JitoTip(10_000, fees.PriorityFromProfit(opp.ExpectedProfitUSD), 1)
	assert.Equal(t, wantTip, res.TipLamports)

	require.Len(t, bundles.bundles, 1)
	require.Len(t, bundles.bundles[0], 1)
	assert.Empty(t, fc.sent)

	tx, err := solana.TransactionFromBytes(bundles.bundles[0][0])
	require.NoError(t, err)
	// limit + price + payload + tip
	assert.Len(t, tx.Message.Instructions, 4)
	assert.Contains(t, tx.Message.AccountKeys, tipAccount)
}

func TestJitoTipCapped(t *testing.T) {
	landing := NewJitoLanding(&fakeBundles{}, fixedTip{pk: solana.SystemProgramID}, 1_000_000, 50_000)
	tip := landing.Tip(fees.PriorityUrgent)
	require.NotNil(t, tip)
	assert.Equal(t, uint64(50_000), tip.Lamports)
}

func TestEstimatorRaisesComputeUnitPrice(t *testing.T) {
	fc := &fakeChain{statuses: []*domain.SignatureStatus{{Slot: 3, ConfirmationStatus: domain.StatusConfirmed}}}
	est := fees.NewEstimator(fees.Config{BaseFee: 50_000})
	exec := New(fastConfig(), fc, newSigner(t), NewDirectLanding(fc), est, discard())

	opp := testOpportunity(t, "opp-e")
	urgency := fees.UrgencyMultiplier(opp.ExpectedProfitUSD, opp.TTL.Seconds(), opp.Competition)
	price := est.FeeForStrategy(fees.StrategyBalanced, urgency)
	require.Greater(t, price, opp.ComputeUnitPrice)

	res := exec.Submit(context.Background(), opp)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, fees.NetworkFee(1)+fees.PriorityFee(200_000, price), res.FeePaidLamports)
}
