package strategy

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

func TestRaydiumDecodeSwap(t *testing.T) {
	ix := raydiumSwap(2_500_000)
	binary.LittleEndian.PutUint64(ix.Data[9:17], 1_000)

	got, err := DefaultDecoders().Decode(ix)
	require.NoError(t, err)
	assert.Equal(t, domain.InstructionSwap, got.Kind)
	assert.Equal(t, uint64(2_500_000), got.AmountIn)
	assert.Equal(t, uint64(1_000), got.MinOut)
	assert.Equal(t, "pool-1", got.Pool)
	assert.Equal(t, "user-src", got.TokenIn)
	assert.Equal(t, "user-dst", got.TokenOut)
}

func TestRaydiumDecodeNonSwapAndErrors(t *testing.T) {
	ix := raydiumSwap(1)
	ix.Data[0] = 1 // initialize
	got, err := RaydiumAMMDecoder{}.Decode(ix)
	require.NoError(t, err)
	assert.Equal(t, domain.InstructionOther, got.Kind)

	_, err = RaydiumAMMDecoder{}.Decode(domain.Instruction{ProgramID: RaydiumAMMProgram, Data: []byte{9}})
	assert.ErrorIs(t, err, domain.ErrUnparseable)

	short := raydiumSwap(1)
	short.Accounts = short.Accounts[:2]
	_, err = RaydiumAMMDecoder{}.Decode(short)
	assert.ErrorIs(t, err, domain.ErrUnparseable)

	_, err = DefaultDecoders().Decode(domain.Instruction{ProgramID: "unknown"})
	assert.ErrorIs(t, err, domain.ErrUnparseable)
}

func TestTokenTransferDecode(t *testing.T) {
	data := make([]byte, 10)
	data[0] = tokenTransferChecked
	binary.LittleEndian.PutUint64(data[1:9], 42)
	ix := domain.Instruction{
		ProgramID: TokenProgram,
		Accounts:  []domain.AccountMeta{{Pubkey: "src"}, {Pubkey: "mint"}, {Pubkey: "dst"}, {Pubkey: "auth"}},
		Data:      data,
	}
	got, err := DefaultDecoders().Decode(ix)
	require.NoError(t, err)
	assert.Equal(t, domain.InstructionTransfer, got.Kind)
	assert.Equal(t, uint64(42), got.AmountIn)
	assert.Equal(t, "src", got.TokenIn)
	assert.Equal(t, "dst", got.TokenOut)
	assert.Equal(t, "mint", got.Pool)
}

func TestConstantProductOut(t *testing.T) {
	assert.Equal(t, uint64(999), constantProductOut(1_000, 1_000_000, 1_000_000, 0))
	// 30 bps on the input: 997 effective
	assert.Equal(t, uint64(996), constantProductOut(1_000, 1_000_000, 1_000_000, 30))
	assert.Zero(t, constantProductOut(0, 1, 1, 0))
	assert.Zero(t, constantProductOut(10, 0, 1, 0))

	r := Reserves{Base: 1_000_000, Quote: 1_000_000}
	out, next := r.swap(1_000, true)
	assert.Equal(t, uint64(999), out)
	assert.Equal(t, uint64(1_001_000), next.Base)
	assert.Equal(t, uint64(999_001), next.Quote)
}
