package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Default lifetimes for account and mint lookups.
const (
	DefaultAccountTTL = 60 * time.Second
	DefaultMintTTL    = 300 * time.Second
)

// Config configures a Service.
type Config struct {
	AccountTTL       time.Duration
	MintTTL          time.Duration
	TokenSetCapacity int
	SweepInterval    time.Duration
}

// MintInfo is the cached mint and owner of an SPL token account.
type MintInfo struct {
	Mint  string
	Owner string
}

// Service bundles the account cache, the mint cache and the wallet token
// account set. It is constructed once and shared by pointer.
type Service struct {
	accounts *TTLMap[string, domain.AccountInfo]
	mints    *TTLMap[string, MintInfo]
	tokens   *Set[string]
	chain    domain.ChainClient
	sweep    time.Duration
	logger   *slog.Logger
}

// NewService creates a Service backed by chain for cache misses. chain may be
// nil, in which case misses are reported as domain.ErrNotFound.
func NewService(cfg Config, chain domain.ChainClient, logger *slog.Logger) *Service {
	if cfg.AccountTTL <= 0 {
		cfg.AccountTTL = DefaultAccountTTL
	}
	if cfg.MintTTL <= 0 {
		cfg.MintTTL = DefaultMintTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	return &Service{
		accounts: NewTTLMap[string, domain.AccountInfo](cfg.AccountTTL),
		mints:    NewTTLMap[string, MintInfo](cfg.MintTTL),
		tokens:   NewSet[string](cfg.TokenSetCapacity),
		chain:    chain,
		sweep:    cfg.SweepInterval,
		logger:   logger.With(slog.String("component", "cache")),
	}
}

// Accounts exposes the raw account cache.
func (s *Service) Accounts() *TTLMap[string, domain.AccountInfo] { return s.accounts }

// Mints exposes the raw mint cache.
func (s *Service) Mints() *TTLMap[string, MintInfo] { return s.mints }

// TokenAccounts exposes the wallet token account set.
func (s *Service) TokenAccounts() *Set[string] { return s.tokens }

// Account returns the account for pubkey, fetching it on a miss.
func (s *Service) Account(ctx context.Context, pubkey string) (domain.AccountInfo, error) {
	if acc, ok := s.accounts.Get(pubkey); ok {
		return acc, nil
	}
	if s.chain == nil {
		return domain.AccountInfo{}, fmt.Errorf("cache: account %s: %w", pubkey, domain.ErrNotFound)
	}
	acc, err := s.chain.GetAccount(ctx, pubkey)
	if err != nil {
		return domain.AccountInfo{}, fmt.Errorf("cache: fetch account %s: %w", pubkey, err)
	}
	s.accounts.Insert(pubkey, acc, 0)
	return acc, nil
}

// AccountsFor fetches several accounts, serving hits from the cache and batching
// the misses into one RPC call. Missing accounts are nil in the result.
func (s *Service) AccountsFor(ctx context.Context, pubkeys []string) ([]*domain.AccountInfo, error) {
	out := make([]*domain.AccountInfo, len(pubkeys))
	var missing []string
	var missingIdx []int
	for i, pk := range pubkeys {
		if acc, ok := s.accounts.Get(pk); ok {
			a := acc
			out[i] = &a
			continue
		}
		missing = append(missing, pk)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	if s.chain == nil {
		return out, nil
	}

	fetched, err := s.chain.GetMultipleAccounts(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("cache: fetch %d accounts: %w", len(missing), err)
	}
	for j, acc := range fetched {
		if j >= len(missingIdx) || acc == nil {
			continue
		}
		s.accounts.Insert(missing[j], *acc, 0)
		out[missingIdx[j]] = acc
	}
	return out, nil
}

// SPL token program owners accepted by MintOf.
const (
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// tokenAccountMinLen covers the mint and owner fields of an SPL token
// account.
const tokenAccountMinLen = 64

// MintOf returns the mint of an SPL token account, caching the answer in the
// mint cache under the token account key.
func (s *Service) MintOf(ctx context.Context, tokenAccount string) (string, error) {
	if info, ok := s.mints.Get(tokenAccount); ok {
		return info.Mint, nil
	}
	acc, err := s.Account(ctx, tokenAccount)
	if err != nil {
		return "", err
	}
	if acc.Owner != TokenProgramID && acc.Owner != Token2022ProgramID {
		return "", fmt.Errorf("cache: %s owned by %s: %w", tokenAccount, acc.Owner, domain.ErrInvalidOwner)
	}
	if len(acc.Data) < tokenAccountMinLen {
		return "", fmt.Errorf("cache: %s has %d bytes: %w", tokenAccount, len(acc.Data), domain.ErrInvalidMint)
	}
	info := MintInfo{
		Mint:  solana.PublicKeyFromBytes(acc.Data[:32]).String(),
		Owner: solana.PublicKeyFromBytes(acc.Data[32:64]).String(),
	}
	s.mints.Insert(tokenAccount, info, 0)
	return info.Mint, nil
}

// Janitor sweeps expired entries until ctx is cancelled.
func (s *Service) Janitor(ctx context.Context) error {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a := s.accounts.ClearExpired()
			m := s.mints.ClearExpired()
			if a+m > 0 {
				s.logger.Debug("cache sweep",
					slog.Int("accounts_removed", a),
					slog.Int("mints_removed", m),
				)
			}
		}
	}
}
