package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mevbot/internal/strategy"
)

// PositionFeed reads lending positions published by an external indexer.
// Each protocol is a hash at "mevbot:positions:{protocol}" mapping the
// position address to a JSON document.
type PositionFeed struct {
	rdb *redis.Client
}

// NewPositionFeed creates a PositionFeed backed by the given Client.
func NewPositionFeed(c *Client) *PositionFeed {
	return &PositionFeed{rdb: c.Underlying()}
}

func positionsKey(protocol string) string {
	return keyPrefix + "positions:" + protocol
}

type positionDoc struct {
	Owner               string  `json:"owner"`
	CollateralMint      string  `json:"collateral_mint"`
	DebtMint            string  `json:"debt_mint"`
	DebtAmount          uint64  `json:"debt_amount"`
	HealthFactor        float64 `json:"health_factor"`
	LiquidationBonusBps uint16  `json:"liquidation_bonus_bps"`
	CloseFactorBps      uint16  `json:"close_factor_bps"`
}

// Put stores one position. Used by indexers and tests.
func (f *PositionFeed) Put(ctx context.Context, p strategy.Position) error {
	data, err := json.Marshal(positionDoc{
		Owner:               p.Owner,
		CollateralMint:      p.CollateralMint,
		DebtMint:            p.DebtMint,
		DebtAmount:          p.DebtAmount,
		HealthFactor:        p.HealthFactor,
		LiquidationBonusBps: p.LiquidationBonusBps,
		CloseFactorBps:      p.CloseFactorBps,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal position %s: %w", p.Address, err)
	}
	if err := f.rdb.HSet(ctx, positionsKey(p.Protocol), p.Address, data).Err(); err != nil {
		return fmt.Errorf("redis: put position %s: %w", p.Address, err)
	}
	return nil
}

// Positions implements strategy.PositionSource. Undecodable entries are
// skipped.
func (f *PositionFeed) Positions(ctx context.Context, protocol string) ([]strategy.Position, error) {
	vals, err := f.rdb.HGetAll(ctx, positionsKey(protocol)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: positions %s: %w", protocol, err)
	}
	out := make([]strategy.Position, 0, len(vals))
	for addr, raw := range vals {
		var doc positionDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			continue
		}
		out = append(out, strategy.Position{
			Address:             addr,
			Protocol:            protocol,
			Owner:               doc.Owner,
			CollateralMint:      doc.CollateralMint,
			DebtMint:            doc.DebtMint,
			DebtAmount:          doc.DebtAmount,
			HealthFactor:        doc.HealthFactor,
			LiquidationBonusBps: doc.LiquidationBonusBps,
			CloseFactorBps:      doc.CloseFactorBps,
		})
	}
	return out, nil
}

var _ strategy.PositionSource = (*PositionFeed)(nil)
