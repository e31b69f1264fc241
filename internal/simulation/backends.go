package simulation

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/mevbot/internal/chain"
	"github.com/alanyoungcy/mevbot/internal/domain"
	"github.com/alanyoungcy/mevbot/internal/fees"
)

// Defaults used when an opportunity does not declare its own estimates.
const (
	DefaultComputeUnits = 150_000
	DefaultSlippageBps  = 50
)

// StaticSimulator trusts the opportunity's own estimates. It is used in
// dry-run mode and when no RPC endpoint is available.
type StaticSimulator struct{}

// Estimate implements Simulator.
func (StaticSimulator) Estimate(_ context.Context, opp domain.Opportunity) (Estimate, error) {
	cu := opp.EstimatedComputeUnits
	if cu == 0 {
		cu = DefaultComputeUnits
	}
	slip := opp.EstimatedSlippageBps
	if slip == 0 {
		slip = DefaultSlippageBps
	}
	return Estimate{
		ProfitLamports: opp.ExpectedProfitLamports,
		ProfitUSD:      opp.ExpectedProfitUSD,
		SlippageBps:    slip,
		ComputeUnits:   cu,
		FeeLamports:    feeFor(opp, cu),
	}, nil
}

func feeFor(opp domain.Opportunity, cu uint64) uint64 {
	fee := fees.NetworkFee(1)
	if opp.ComputeUnitPrice > 0 {
		fee += fees.PriorityFee(uint32(cu), opp.ComputeUnitPrice)
	}
	return fee
}

// RPCSimulator compiles the opportunity into a transaction and runs it
// through the node's simulateTransaction. Profit and slippage still come
// from the opportunity; the node contributes execution success, logs and
// compute units.
type RPCSimulator struct {
	chain  domain.ChainClient
	signer domain.Signer
}

// NewRPCSimulator creates an RPCSimulator.
func NewRPCSimulator(client domain.ChainClient, signer domain.Signer) *RPCSimulator {
	return &RPCSimulator{chain: client, signer: signer}
}

// Estimate implements Simulator.
func (s *RPCSimulator) Estimate(ctx context.Context, opp domain.Opportunity) (Estimate, error) {
	if len(opp.Instructions) == 0 {
		return Estimate{}, domain.ErrNoInstructions
	}
	payer, err := chain.ParsePublicKey(s.signer.PublicKey())
	if err != nil {
		return Estimate{}, err
	}

	// The node replaces the blockhash, so a zero hash is fine here.
	tx, err := chain.BuildTransaction(chain.TxRequest{
		Payer:            payer,
		ComputeUnitLimit: opp.ComputeUnitLimit,
		ComputeUnitPrice: opp.ComputeUnitPrice,
		Instructions:     opp.Instructions,
	})
	if err != nil {
		return Estimate{}, err
	}
	_, raw, err := chain.SignTransaction(tx, s.signer)
	if err != nil {
		return Estimate{}, err
	}

	out, err := s.chain.SimulateTransaction(ctx, raw)
	if err != nil {
		return Estimate{}, err
	}
	if out.Err != "" {
		return Estimate{}, fmt.Errorf("transaction error: %s", out.Err)
	}

	est, _ := StaticSimulator{}.Estimate(ctx, opp)
	if out.UnitsConsumed > 0 {
		est.ComputeUnits = out.UnitsConsumed
		est.FeeLamports = feeFor(opp, out.UnitsConsumed)
	}
	est.Logs = out.Logs
	return est, nil
}

// ErrNoBackend is returned by Fallback when every backend failed.
var ErrNoBackend = errors.New("simulation: no backend succeeded")

// Fallback tries each backend in order and returns the first estimate.
type Fallback []Simulator

// Estimate implements Simulator.
func (f Fallback) Estimate(ctx context.Context, opp domain.Opportunity) (Estimate, error) {
	var errs []error
	for _, s := range f {
		est, err := s.Estimate(ctx, opp)
		if err == nil {
			return est, nil
		}
		errs = append(errs, err)
	}
	return Estimate{}, errors.Join(append([]error{ErrNoBackend}, errs...)...)
}
