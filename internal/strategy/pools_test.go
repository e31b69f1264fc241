package strategy

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

type vaultAccounts map[string]uint64

func (v vaultAccounts) AccountsFor(_ context.Context, pubkeys []string) ([]*domain.AccountInfo, error) {
	out := make([]*domain.AccountInfo, len(pubkeys))
	for i, pk := range pubkeys {
		amount, ok := v[pk]
		if !ok {
			continue
		}
		data := make([]byte, 165)
		binary.LittleEndian.PutUint64(data[splAmountOffset:], amount)
		out[i] = &domain.AccountInfo{Pubkey: pk, Data: data}
	}
	return out, nil
}

func testBook() *PoolBook {
	return NewPoolBook([]PoolSpec{
		{Venue: "raydium", Address: "ray-sol-usdc", ProgramID: RaydiumAMMProgram, BaseMint: WrappedSOLMint, QuoteMint: USDCMint, BaseVault: "v1", QuoteVault: "v2", FeeBps: 25},
		{Venue: "orca", Address: "orca-sol-usdc", BaseMint: WrappedSOLMint, QuoteMint: USDCMint, BaseVault: "v3", QuoteVault: "v4"},
		{Venue: "raydium", Address: "ray-missing", BaseMint: "A", QuoteMint: "B", BaseVault: "nope", QuoteVault: "v2"},
	}, vaultAccounts{"v1": 1_000_000, "v2": 2_000_000, "v3": 1_000_000, "v4": 1_000_000})
}

func TestPoolBook_Reserves(t *testing.T) {
	b := testBook()
	r, err := b.Reserves(context.Background(), "ray-sol-usdc")
	require.NoError(t, err)
	assert.Equal(t, Reserves{Base: 1_000_000, Quote: 2_000_000, FeeBps: 25}, r)

	_, err = b.Reserves(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = b.Reserves(context.Background(), "ray-missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestPoolBook_QuoteBothDirections(t *testing.T) {
	b := testBook()
	ctx := context.Background()

	q, err := b.Quote(ctx, "orca", WrappedSOLMint, USDCMint, 1_000)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, uint64(999), q.AmountOut)
	assert.Equal(t, "orca-sol-usdc", q.Pool)

	q, err = b.Quote(ctx, "raydium", USDCMint, WrappedSOLMint, 2_000)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, constantProductOut(2_000, 2_000_000, 1_000_000, 25), q.AmountOut)
	assert.Equal(t, RaydiumAMMProgram, q.ProgramID)

	q, err = b.Quote(ctx, "orca", "X", "Y", 1)
	require.NoError(t, err)
	assert.Nil(t, q)

	assert.Equal(t, []string{"raydium", "orca"}, b.Venues())
}
