package executor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/mevbot/internal/chain"
	"github.com/alanyoungcy/mevbot/internal/domain"
	"github.com/alanyoungcy/mevbot/internal/fees"
)

// Landing is a transaction submission path.
type Landing interface {
	Mode() domain.LandingMode
	// Tip returns the tip transfer to append, or nil.
	Tip(p fees.Priority) *chain.Tip
	Send(ctx context.Context, rawTx []byte) (string, error)
}

// TipAccountPicker chooses the tip destination for a bundle.
type TipAccountPicker interface {
	TipAccount() solana.PublicKey
}

// JitoLanding appends a tip transfer and submits the transaction as a
// single-transaction bundle.
type JitoLanding struct {
	bundles domain.BundleSender
	tips    TipAccountPicker
	baseTip uint64
	maxTip  uint64
}

// NewJitoLanding creates a JitoLanding. A zero maxTip means uncapped.
func NewJitoLanding(bundles domain.BundleSender, tips TipAccountPicker, baseTip, maxTip uint64) *JitoLanding {
	return &JitoLanding{bundles: bundles, tips: tips, baseTip: baseTip, maxTip: maxTip}
}

func (j *JitoLanding) Mode() domain.LandingMode { return domain.LandingJito }

// Tip scales the base tip by priority.
func (j *JitoLanding) Tip(p fees.Priority) *chain.Tip {
	amount := fees.JitoTip(j.baseTip, p, 1)
	if j.maxTip > 0 && amount > j.maxTip {
		amount = j.maxTip
	}
	return &chain.Tip{Account: j.tips.TipAccount(), Lamports: amount}
}

// Send submits rawTx as a bundle.
func (j *JitoLanding) Send(ctx context.Context, rawTx []byte) (string, error) {
	id, err := j.bundles.SendBundle(ctx, [][]byte{rawTx})
	if err != nil {
		return "", fmt.Errorf("executor: jito: %w", err)
	}
	return id, nil
}

// DirectLanding sends through the RPC node with preflight disabled and
// relies on compute-budget pricing alone.
type DirectLanding struct {
	chain domain.ChainClient
}

// NewDirectLanding creates a DirectLanding.
func NewDirectLanding(client domain.ChainClient) *DirectLanding {
	return &DirectLanding{chain: client}
}

func (d *DirectLanding) Mode() domain.LandingMode { return domain.LandingDirect }

// Tip returns nil; direct submission pays priority fees only.
func (d *DirectLanding) Tip(fees.Priority) *chain.Tip { return nil }

// Send submits rawTx via sendTransaction.
func (d *DirectLanding) Send(ctx context.Context, rawTx []byte) (string, error) {
	sig, err := d.chain.SendTransaction(ctx, rawTx)
	if err != nil {
		return "", fmt.Errorf("executor: direct: %w", err)
	}
	return sig, nil
}
