package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// PriceCache stores USD prices per mint as hashes at "mevbot:price:{mint}"
// with fields "price" and "ts" (Unix nanoseconds). An external feed writes
// them; the bot only reads.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(mint string) string {
	return keyPrefix + "price:" + mint
}

// SetPrice stores the latest price and timestamp for a mint.
func (pc *PriceCache) SetPrice(ctx context.Context, mint string, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(mint), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", mint, err)
	}
	return nil
}

// GetPrice returns the latest price and its timestamp, or domain.ErrNotFound.
func (pc *PriceCache) GetPrice(ctx context.Context, mint string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(mint)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", mint, err)
	}
	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", mint, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", mint, err)
	}
	return price, time.Unix(0, tsNano), nil
}

// LivePricer values lamport amounts at the SOL price last read from the
// cache. Reads on the hot path never touch Redis; Run refreshes the price in
// the background and keeps the fallback when the cached price is missing or
// older than maxAge.
type LivePricer struct {
	cache    *PriceCache
	mint     string
	maxAge   time.Duration
	fallback float64
	bits     atomic.Uint64
	logger   *slog.Logger
}

// NewLivePricer starts at fallbackUSD until the first refresh.
func NewLivePricer(cache *PriceCache, solMint string, fallbackUSD float64, maxAge time.Duration, logger *slog.Logger) *LivePricer {
	p := &LivePricer{
		cache:    cache,
		mint:     solMint,
		maxAge:   maxAge,
		fallback: fallbackUSD,
		logger:   logger.With(slog.String("component", "sol_pricer")),
	}
	p.bits.Store(math.Float64bits(fallbackUSD))
	return p
}

// PriceUSD returns the current SOL price.
func (p *LivePricer) PriceUSD() float64 {
	return math.Float64frombits(p.bits.Load())
}

// USDValue implements strategy.Pricer.
func (p *LivePricer) USDValue(_ string, amount uint64) float64 {
	return float64(amount) / 1e9 * p.PriceUSD()
}

// Refresh reads the cached price once.
func (p *LivePricer) Refresh(ctx context.Context) error {
	price, ts, err := p.cache.GetPrice(ctx, p.mint)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if price <= 0 || (p.maxAge > 0 && time.Since(ts) > p.maxAge) {
		p.bits.Store(math.Float64bits(p.fallback))
		return nil
	}
	p.bits.Store(math.Float64bits(price))
	return nil
}

// Run refreshes every interval until ctx is cancelled.
func (p *LivePricer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("price refresh failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
