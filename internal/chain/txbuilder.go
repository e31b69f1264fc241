package chain

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Tip is a lamport transfer appended for tip-bundled landing.
type Tip struct {
	Account  solana.PublicKey
	Lamports uint64
}

// TxRequest describes the transaction to assemble.
type TxRequest struct {
	Payer            solana.PublicKey
	Blockhash        solana.Hash
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
	Tip              *Tip
	Instructions     []domain.Instruction
}

// BuildTransaction prepends compute-budget instructions, appends the tip
// transfer if any, and compiles the message. It does not sign.
func BuildTransaction(req TxRequest) (*solana.Transaction, error) {
	if len(req.Instructions) == 0 {
		return nil, domain.ErrNoInstructions
	}

	ixs := make([]solana.Instruction, 0, len(req.Instructions)+3)
	if req.ComputeUnitLimit > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitLimitInstruction(req.ComputeUnitLimit).Build())
	}
	if req.ComputeUnitPrice > 0 {
		ixs = append(ixs, computebudget.NewSetComputeUnitPriceInstruction(req.ComputeUnitPrice).Build())
	}
	for i, ix := range req.Instructions {
		sol, err := ToSolanaInstruction(ix)
		if err != nil {
			return nil, fmt.Errorf("chain: instruction %d: %w", i, err)
		}
		ixs = append(ixs, sol)
	}
	if req.Tip != nil && req.Tip.Lamports > 0 {
		ixs = append(ixs, system.NewTransferInstruction(req.Tip.Lamports, req.Payer, req.Tip.Account).Build())
	}

	tx, err := solana.NewTransaction(ixs, req.Blockhash, solana.TransactionPayer(req.Payer))
	if err != nil {
		return nil, fmt.Errorf("chain: build transaction: %w", err)
	}
	return tx, nil
}

// ToSolanaInstruction converts a raw domain instruction.
func ToSolanaInstruction(ix domain.Instruction) (solana.Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(ix.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("%w: program id %q", domain.ErrUnparseable, ix.ProgramID)
	}
	metas := make(solana.AccountMetaSlice, 0, len(ix.Accounts))
	for _, a := range ix.Accounts {
		pk, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("%w: account %q", domain.ErrUnparseable, a.Pubkey)
		}
		metas = append(metas, solana.NewAccountMeta(pk, a.IsWritable, a.IsSigner))
	}
	return solana.NewInstruction(programID, metas, ix.Data), nil
}

// SignTransaction signs tx with signer as the sole required signer and
// returns the signature and the wire encoding.
func SignTransaction(tx *solana.Transaction, signer domain.Signer) (string, []byte, error) {
	if tx.Message.Header.NumRequiredSignatures != 1 {
		return "", nil, fmt.Errorf("chain: %w: transaction needs %d signers",
			domain.ErrSigningFailed, tx.Message.Header.NumRequiredSignatures)
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return "", nil, fmt.Errorf("chain: marshal message: %w", err)
	}
	raw, err := signer.Sign(msg)
	if err != nil {
		return "", nil, err
	}
	if len(raw) != 64 {
		return "", nil, errors.New("chain: signer returned a malformed signature")
	}
	var sig solana.Signature
	copy(sig[:], raw)
	tx.Signatures = []solana.Signature{sig}

	wire, err := tx.MarshalBinary()
	if err != nil {
		return "", nil, fmt.Errorf("chain: marshal transaction: %w", err)
	}
	return sig.String(), wire, nil
}

// ParseHash decodes a base58 blockhash.
func ParseHash(s string) (solana.Hash, error) {
	h, err := solana.HashFromBase58(s)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("chain: parse blockhash: %w", err)
	}
	return h, nil
}

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("chain: parse public key %q: %w", s, err)
	}
	return pk, nil
}
