package cache

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

type countingChain struct {
	domain.ChainClient
	single   int
	multiple int
	accounts map[string]domain.AccountInfo
}

func (c *countingChain) GetAccount(_ context.Context, pk string) (domain.AccountInfo, error) {
	c.single++
	acc, ok := c.accounts[pk]
	if !ok {
		return domain.AccountInfo{}, domain.ErrAccountNotFound
	}
	return acc, nil
}

func (c *countingChain) GetMultipleAccounts(_ context.Context, pks []string) ([]*domain.AccountInfo, error) {
	c.multiple++
	out := make([]*domain.AccountInfo, len(pks))
	for i, pk := range pks {
		if acc, ok := c.accounts[pk]; ok {
			a := acc
			out[i] = &a
		}
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_AccountHitsCacheAfterFirstFetch(t *testing.T) {
	chain := &countingChain{accounts: map[string]domain.AccountInfo{
		"pool1": {Pubkey: "pool1", Lamports: 10},
	}}
	svc := NewService(Config{}, chain, discardLogger())

	for i := 0; i < 3; i++ {
		acc, err := svc.Account(context.Background(), "pool1")
		require.NoError(t, err)
		assert.Equal(t, uint64(10), acc.Lamports)
	}
	assert.Equal(t, 1, chain.single)

	_, err := svc.Account(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestService_AccountsForBatchesMisses(t *testing.T) {
	chain := &countingChain{accounts: map[string]domain.AccountInfo{
		"a": {Pubkey: "a"},
		"b": {Pubkey: "b"},
	}}
	svc := NewService(Config{}, chain, discardLogger())
	svc.Accounts().Insert("a", domain.AccountInfo{Pubkey: "a", Lamports: 5}, 0)

	got, err := svc.AccountsFor(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(5), got[0].Lamports, "hit served from cache")
	assert.Equal(t, "b", got[1].Pubkey)
	assert.Nil(t, got[2])
	assert.Equal(t, 1, chain.multiple)

	_, ok := svc.Accounts().Get("b")
	assert.True(t, ok)
}

func TestService_NoChainReportsNotFound(t *testing.T) {
	svc := NewService(Config{}, nil, discardLogger())
	_, err := svc.Account(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_MintOfReadsTokenAccountLayout(t *testing.T) {
	mint := solana.PublicKeyFromBytes(bytes.Repeat([]byte{3}, 32))
	owner := solana.PublicKeyFromBytes(bytes.Repeat([]byte{4}, 32))
	data := append(append(append([]byte{}, mint[:]...), owner[:]...), make([]byte, 101)...)

	chain := &countingChain{accounts: map[string]domain.AccountInfo{
		"ata":   {Pubkey: "ata", Owner: TokenProgramID, Data: data},
		"pool":  {Pubkey: "pool", Owner: "11111111111111111111111111111111", Data: data},
		"short": {Pubkey: "short", Owner: TokenProgramID, Data: data[:10]},
	}}
	svc := NewService(Config{}, chain, discardLogger())

	got, err := svc.MintOf(context.Background(), "ata")
	require.NoError(t, err)
	assert.Equal(t, mint.String(), got)

	// second lookup is served from the mint cache
	svc.Accounts().Clear()
	_, err = svc.MintOf(context.Background(), "ata")
	require.NoError(t, err)
	assert.Equal(t, 1, chain.single)

	_, err = svc.MintOf(context.Background(), "pool")
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)
	_, err = svc.MintOf(context.Background(), "short")
	assert.ErrorIs(t, err, domain.ErrInvalidMint)
}
