package strategy

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// PoolSpec describes one constant-product pool by its token vaults.
type PoolSpec struct {
	Venue      string
	Address    string
	ProgramID  string
	BaseMint   string
	QuoteMint  string
	BaseVault  string
	QuoteVault string
	FeeBps     uint16
}

// AccountReader batch-loads accounts; missing accounts are nil.
type AccountReader interface {
	AccountsFor(ctx context.Context, pubkeys []string) ([]*domain.AccountInfo, error)
}

// splAmountOffset is the u64 amount field of an SPL token account.
const splAmountOffset = 64

// PoolBook quotes and reports reserves for a fixed set of pools by reading
// their vault balances. It implements both Quoter and PoolSource.
type PoolBook struct {
	pools    []PoolSpec
	byAddr   map[string]PoolSpec
	accounts AccountReader
}

// NewPoolBook indexes pools by address.
func NewPoolBook(pools []PoolSpec, accounts AccountReader) *PoolBook {
	b := &PoolBook{
		pools:    pools,
		byAddr:   make(map[string]PoolSpec, len(pools)),
		accounts: accounts,
	}
	for _, p := range pools {
		b.byAddr[p.Address] = p
	}
	return b
}

// Venues lists the distinct venues in registration order.
func (b *PoolBook) Venues() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range b.pools {
		if !seen[p.Venue] {
			seen[p.Venue] = true
			out = append(out, p.Venue)
		}
	}
	return out
}

// Reserves implements PoolSource.
func (b *PoolBook) Reserves(ctx context.Context, pool string) (Reserves, error) {
	spec, ok := b.byAddr[pool]
	if !ok {
		return Reserves{}, fmt.Errorf("pools: %s: %w", pool, domain.ErrAccountNotFound)
	}
	return b.load(ctx, spec)
}

func (b *PoolBook) load(ctx context.Context, spec PoolSpec) (Reserves, error) {
	accs, err := b.accounts.AccountsFor(ctx, []string{spec.BaseVault, spec.QuoteVault})
	if err != nil {
		return Reserves{}, fmt.Errorf("pools: vaults of %s: %w", spec.Address, err)
	}
	base, err := vaultAmount(accs[0], spec.BaseVault)
	if err != nil {
		return Reserves{}, err
	}
	quote, err := vaultAmount(accs[1], spec.QuoteVault)
	if err != nil {
		return Reserves{}, err
	}
	return Reserves{Base: base, Quote: quote, FeeBps: spec.FeeBps}, nil
}

func vaultAmount(acc *domain.AccountInfo, vault string) (uint64, error) {
	if acc == nil {
		return 0, fmt.Errorf("pools: vault %s: %w", vault, domain.ErrAccountNotFound)
	}
	if len(acc.Data) < splAmountOffset+8 {
		return 0, fmt.Errorf("pools: vault %s has %d bytes: %w", vault, len(acc.Data), domain.ErrInvalidMint)
	}
	return binary.LittleEndian.Uint64(acc.Data[splAmountOffset:]), nil
}

// Quote implements Quoter using the first pool of venue that trades the pair
// in either direction.
func (b *PoolBook) Quote(ctx context.Context, venue, tokenIn, tokenOut string, amountIn uint64) (*Quote, error) {
	for _, spec := range b.pools {
		if spec.Venue != venue {
			continue
		}
		var baseIn bool
		switch {
		case spec.BaseMint == tokenIn && spec.QuoteMint == tokenOut:
			baseIn = true
		case spec.QuoteMint == tokenIn && spec.BaseMint == tokenOut:
		default:
			continue
		}
		r, err := b.load(ctx, spec)
		if err != nil {
			return nil, err
		}
		out, _ := r.swap(amountIn, baseIn)
		return &Quote{
			Venue:     venue,
			ProgramID: spec.ProgramID,
			Pool:      spec.Address,
			AmountOut: out,
			FeeBps:    spec.FeeBps,
		}, nil
	}
	return nil, nil
}
