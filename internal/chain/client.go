// Package chain adapts the Solana JSON-RPC API and the Jito block engine to
// the narrow interfaces consumed by the pipeline.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Compile-time interface check.
var _ domain.ChainClient = (*RPCClient)(nil)

// RPCClient implements domain.ChainClient over solana-go's rpc.Client. It is
// safe for concurrent use.
type RPCClient struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPCClient dials nothing; requests are issued lazily against endpoint.
func NewRPCClient(endpoint, commitment string) *RPCClient {
	return &RPCClient{
		rpc:        rpc.New(endpoint),
		commitment: parseCommitment(commitment),
	}
}

func parseCommitment(s string) rpc.CommitmentType {
	switch s {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

// Close releases the underlying HTTP transport.
func (c *RPCClient) Close() error {
	return c.rpc.Close()
}

// LatestBlockhash fetches a recent blockhash.
func (c *RPCClient) LatestBlockhash(ctx context.Context) (domain.Blockhash, error) {
	res, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return domain.Blockhash{}, fmt.Errorf("chain: get latest blockhash: %w", err)
	}
	if res == nil || res.Value == nil {
		return domain.Blockhash{}, errors.New("chain: get latest blockhash: empty response")
	}
	return domain.Blockhash{
		Hash:                 res.Value.Blockhash.String(),
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
	}, nil
}

// SendTransaction submits a signed, serialized transaction with preflight
// disabled.
func (c *RPCClient) SendTransaction(ctx context.Context, rawTx []byte) (string, error) {
	tx, err := solana.TransactionFromBytes(rawTx)
	if err != nil {
		return "", fmt.Errorf("chain: decode transaction: %w", err)
	}
	var maxRetries uint = 0
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentProcessed,
		MaxRetries:          &maxRetries,
	})
	if err != nil {
		return "", fmt.Errorf("chain: send transaction: %w", err)
	}
	return sig.String(), nil
}

// SignatureStatus returns nil when the signature is not known yet.
func (c *RPCClient) SignatureStatus(ctx context.Context, signature string) (*domain.SignatureStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("chain: parse signature: %w", err)
	}
	res, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return nil, fmt.Errorf("chain: get signature status: %w", err)
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return nil, nil
	}
	st := res.Value[0]
	out := &domain.SignatureStatus{
		Slot:               st.Slot,
		ConfirmationStatus: domain.ConfirmationStatus(st.ConfirmationStatus),
	}
	if st.Err != nil {
		out.Err = fmt.Sprint(st.Err)
	}
	return out, nil
}

// SimulateTransaction runs the transaction without signature verification,
// replacing its blockhash with a recent one.
func (c *RPCClient) SimulateTransaction(ctx context.Context, rawTx []byte) (domain.SimulationOutcome, error) {
	tx, err := solana.TransactionFromBytes(rawTx)
	if err != nil {
		return domain.SimulationOutcome{}, fmt.Errorf("chain: decode transaction: %w", err)
	}
	res, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		Commitment:             c.commitment,
		ReplaceRecentBlockhash: true,
	})
	if err != nil {
		return domain.SimulationOutcome{}, fmt.Errorf("chain: simulate transaction: %w", err)
	}
	if res == nil || res.Value == nil {
		return domain.SimulationOutcome{}, errors.New("chain: simulate transaction: empty response")
	}

	out := domain.SimulationOutcome{Logs: res.Value.Logs}
	if res.Value.Err != nil {
		out.Err = fmt.Sprint(res.Value.Err)
	}
	if res.Value.UnitsConsumed != nil {
		out.UnitsConsumed = *res.Value.UnitsConsumed
	}
	return out, nil
}

// GetAccount fetches one account. A missing account maps to
// domain.ErrAccountNotFound.
func (c *RPCClient) GetAccount(ctx context.Context, pubkey string) (domain.AccountInfo, error) {
	pk, err := solana.PublicKeyFromBase58(pubkey)
	if err != nil {
		return domain.AccountInfo{}, fmt.Errorf("chain: parse pubkey %q: %w", pubkey, err)
	}
	res, err := c.rpc.GetAccountInfo(ctx, pk)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return domain.AccountInfo{}, fmt.Errorf("chain: %s: %w", pubkey, domain.ErrAccountNotFound)
		}
		return domain.AccountInfo{}, fmt.Errorf("chain: get account %s: %w", pubkey, err)
	}
	if res == nil || res.Value == nil {
		return domain.AccountInfo{}, fmt.Errorf("chain: %s: %w", pubkey, domain.ErrAccountNotFound)
	}
	return toAccountInfo(pubkey, res.Value), nil
}

// GetMultipleAccounts fetches accounts in one request; missing accounts are
// nil in the result.
func (c *RPCClient) GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*domain.AccountInfo, error) {
	keys := make([]solana.PublicKey, 0, len(pubkeys))
	for _, s := range pubkeys {
		pk, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("chain: parse pubkey %q: %w", s, err)
		}
		keys = append(keys, pk)
	}
	res, err := c.rpc.GetMultipleAccounts(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("chain: get multiple accounts: %w", err)
	}

	out := make([]*domain.AccountInfo, len(pubkeys))
	if res == nil {
		return out, nil
	}
	for i, acc := range res.Value {
		if i >= len(out) || acc == nil {
			continue
		}
		info := toAccountInfo(pubkeys[i], acc)
		out[i] = &info
	}
	return out, nil
}

func toAccountInfo(pubkey string, acc *rpc.Account) domain.AccountInfo {
	info := domain.AccountInfo{
		Pubkey:   pubkey,
		Owner:    acc.Owner.String(),
		Lamports: acc.Lamports,
	}
	if acc.Data != nil {
		info.Data = acc.Data.GetBinary()
	}
	return info
}

// TransactionInstructions fetches a confirmed transaction and returns its
// top-level instructions with account keys resolved, including keys loaded
// from address lookup tables.
func (c *RPCClient) TransactionInstructions(ctx context.Context, signature string) ([]domain.Instruction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("chain: parse signature: %w", err)
	}
	maxVersion := uint64(0)
	res, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("chain: transaction %s: %w", signature, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("chain: get transaction: %w", err)
	}
	if res == nil || res.Transaction == nil {
		return nil, fmt.Errorf("chain: transaction %s: %w", signature, domain.ErrNotFound)
	}
	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("chain: decode transaction: %w", err)
	}

	var loadedWritable, loadedReadonly solana.PublicKeySlice
	if res.Meta != nil {
		loadedWritable = res.Meta.LoadedAddresses.Writable
		loadedReadonly = res.Meta.LoadedAddresses.ReadOnly
	}
	return resolveInstructions(tx.Message, loadedWritable, loadedReadonly), nil
}

// resolveInstructions expands compiled instructions using the message
// header to derive signer and writable flags.
func resolveInstructions(msg solana.Message, loadedWritable, loadedReadonly solana.PublicKeySlice) []domain.Instruction {
	static := len(msg.AccountKeys)
	keys := make(solana.PublicKeySlice, 0, static+len(loadedWritable)+len(loadedReadonly))
	keys = append(keys, msg.AccountKeys...)
	keys = append(keys, loadedWritable...)
	keys = append(keys, loadedReadonly...)

	h := msg.Header
	isSigner := func(i int) bool { return i < int(h.NumRequiredSignatures) }
	isWritable := func(i int) bool {
		switch {
		case i < int(h.NumRequiredSignatures):
			return i < int(h.NumRequiredSignatures)-int(h.NumReadonlySignedAccounts)
		case i < static:
			return i < static-int(h.NumReadonlyUnsignedAccounts)
		default:
			return i < static+len(loadedWritable)
		}
	}

	out := make([]domain.Instruction, 0, len(msg.Instructions))
	for _, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= len(keys) {
			continue
		}
		ix := domain.Instruction{
			ProgramID: keys[ci.ProgramIDIndex].String(),
			Data:      []byte(ci.Data),
		}
		for _, idx := range ci.Accounts {
			i := int(idx)
			if i >= len(keys) {
				continue
			}
			ix.Accounts = append(ix.Accounts, domain.AccountMeta{
				Pubkey:     keys[i].String(),
				IsSigner:   isSigner(i),
				IsWritable: isWritable(i),
			})
		}
		out = append(out, ix)
	}
	return out
}

// RecentPrioritizationFees returns per-slot priority fees (micro-lamports
// per compute unit) observed by the node. An empty accounts list gives the
// network-wide view.
func (c *RPCClient) RecentPrioritizationFees(ctx context.Context, accounts []string) ([]domain.FeeObservation, error) {
	keys := make(solana.PublicKeySlice, 0, len(accounts))
	for _, a := range accounts {
		pk, err := solana.PublicKeyFromBase58(a)
		if err != nil {
			return nil, fmt.Errorf("chain: parse account %q: %w", a, err)
		}
		keys = append(keys, pk)
	}
	res, err := c.rpc.GetRecentPrioritizationFees(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("chain: get recent prioritization fees: %w", err)
	}
	out := make([]domain.FeeObservation, 0, len(res))
	for _, f := range res {
		out = append(out, domain.FeeObservation{Slot: f.Slot, Fee: f.PrioritizationFee})
	}
	return out, nil
}
