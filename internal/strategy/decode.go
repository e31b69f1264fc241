package strategy

import (
	"encoding/binary"
	"fmt"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Well-known program ids.
const (
	RaydiumAMMProgram = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	TokenProgram      = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

// Decoders dispatches to a per-program decoder.
type Decoders map[string]domain.Decoder

// Decode implements domain.Decoder.
func (d Decoders) Decode(ix domain.Instruction) (domain.DecodedInstruction, error) {
	dec, ok := d[ix.ProgramID]
	if !ok {
		return domain.DecodedInstruction{}, fmt.Errorf("%w: no decoder for program %s", domain.ErrUnparseable, ix.ProgramID)
	}
	return dec.Decode(ix)
}

// DefaultDecoders covers the Raydium AMM v4 swaps and SPL token transfers.
func DefaultDecoders() Decoders {
	return Decoders{
		RaydiumAMMProgram: RaydiumAMMDecoder{},
		TokenProgram:      TokenTransferDecoder{},
	}
}

// RaydiumAMMDecoder decodes swap_base_in (9) and swap_base_out (11). Token
// fields carry the user's source and destination token accounts; mints are
// resolved later by the strategy.
type RaydiumAMMDecoder struct{}

const (
	raydiumSwapBaseIn  = 9
	raydiumSwapBaseOut = 11
)

// Decode implements domain.Decoder.
func (RaydiumAMMDecoder) Decode(ix domain.Instruction) (domain.DecodedInstruction, error) {
	if len(ix.Data) < 17 {
		return domain.DecodedInstruction{}, fmt.Errorf("%w: raydium data length %d", domain.ErrUnparseable, len(ix.Data))
	}
	out := domain.DecodedInstruction{ProgramID: ix.ProgramID, Kind: domain.InstructionOther}
	switch ix.Data[0] {
	case raydiumSwapBaseIn:
		out.Kind = domain.InstructionSwap
		out.AmountIn = binary.LittleEndian.Uint64(ix.Data[1:9])
		out.MinOut = binary.LittleEndian.Uint64(ix.Data[9:17])
	case raydiumSwapBaseOut:
		// max_amount_in bounds what the user is willing to spend.
		out.Kind = domain.InstructionSwap
		out.AmountIn = binary.LittleEndian.Uint64(ix.Data[1:9])
		out.MinOut = binary.LittleEndian.Uint64(ix.Data[9:17])
	default:
		return out, nil
	}

	// amm at index 1; user source, destination and owner are the last three.
	n := len(ix.Accounts)
	if n < 4 {
		return domain.DecodedInstruction{}, fmt.Errorf("%w: raydium swap with %d accounts", domain.ErrUnparseable, n)
	}
	out.Pool = ix.Accounts[1].Pubkey
	out.TokenIn = ix.Accounts[n-3].Pubkey
	out.TokenOut = ix.Accounts[n-2].Pubkey
	return out, nil
}

// TokenTransferDecoder decodes SPL token Transfer (3) and TransferChecked (12).
type TokenTransferDecoder struct{}

const (
	tokenTransfer        = 3
	tokenTransferChecked = 12
)

// Decode implements domain.Decoder.
func (TokenTransferDecoder) Decode(ix domain.Instruction) (domain.DecodedInstruction, error) {
	if len(ix.Data) < 9 {
		return domain.DecodedInstruction{}, fmt.Errorf("%w: token data length %d", domain.ErrUnparseable, len(ix.Data))
	}
	out := domain.DecodedInstruction{ProgramID: ix.ProgramID, Kind: domain.InstructionOther}
	switch ix.Data[0] {
	case tokenTransfer:
		if len(ix.Accounts) < 2 {
			return domain.DecodedInstruction{}, fmt.Errorf("%w: transfer accounts", domain.ErrUnparseable)
		}
		out.Kind = domain.InstructionTransfer
		out.AmountIn = binary.LittleEndian.Uint64(ix.Data[1:9])
		out.TokenIn = ix.Accounts[0].Pubkey
		out.TokenOut = ix.Accounts[1].Pubkey
	case tokenTransferChecked:
		// source, mint, destination, authority
		if len(ix.Accounts) < 3 {
			return domain.DecodedInstruction{}, fmt.Errorf("%w: transfer_checked accounts", domain.ErrUnparseable)
		}
		out.Kind = domain.InstructionTransfer
		out.AmountIn = binary.LittleEndian.Uint64(ix.Data[1:9])
		out.TokenIn = ix.Accounts[0].Pubkey
		out.TokenOut = ix.Accounts[2].Pubkey
		out.Pool = ix.Accounts[1].Pubkey
	}
	return out, nil
}
