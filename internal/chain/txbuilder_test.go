package chain

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

func newSigner(t *testing.T) *KeypairSigner {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return NewKeypairSignerFromKey(key)
}

func memoInstruction(t *testing.T) domain.Instruction {
	t.Helper()
	other, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return domain.Instruction{
		ProgramID: solana.SystemProgramID.String(),
		Accounts: []domain.AccountMeta{
			{Pubkey: other.PublicKey().String(), IsWritable: true},
		},
		Data: []byte("hello"),
	}
}

func TestBuildAndSignTransaction(t *testing.T) {
	signer := newSigner(t)
	payer, err := ParsePublicKey(signer.PublicKey())
	require.NoError(t, err)

	tipKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	tx, err := BuildTransaction(TxRequest{
		Payer:            payer,
		Blockhash:        solana.Hash{1, 2, 3},
		ComputeUnitLimit: 200_000,
		ComputeUnitPrice: 10_000,
		Tip:              &Tip{Account: tipKey.PublicKey(), Lamports: 5_000},
		Instructions:     []domain.Instruction{memoInstruction(t)},
	})
	require.NoError(t, err)
	// limit + price + memo + tip
	assert.Len(t, tx.Message.Instructions, 4)
	assert.Equal(t, payer, tx.Message.AccountKeys[0])

	sig, wire, err := SignTransaction(tx, signer)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	decoded, err := solana.TransactionFromBytes(wire)
	require.NoError(t, err)
	require.Len(t, decoded.Signatures, 1)
	assert.Equal(t, sig, decoded.Signatures[0].String())

	msg, err := decoded.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(ed25519.PublicKey(payer[:]), msg, decoded.Signatures[0][:]))
}

func TestBuildTransactionWithoutBudgetOrTip(t *testing.T) {
	signer := newSigner(t)
	payer, err := ParsePublicKey(signer.PublicKey())
	require.NoError(t, err)

	tx, err := BuildTransaction(TxRequest{
		Payer:        payer,
		Blockhash:    solana.Hash{9},
		Instructions: []domain.Instruction{memoInstruction(t)},
	})
	require.NoError(t, err)
	assert.Len(t, tx.Message.Instructions, 1)
}

func TestBuildTransactionErrors(t *testing.T) {
	_, err := BuildTransaction(TxRequest{})
	assert.True(t, errors.Is(err, domain.ErrNoInstructions))

	_, err = BuildTransaction(TxRequest{
		Instructions: []domain.Instruction{{ProgramID: "not-base58!"}},
	})
	assert.True(t, errors.Is(err, domain.ErrUnparseable))
}

func TestKeypairSigner(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	s, err := NewKeypairSigner(key.String())
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey().String(), s.PublicKey())

	sig, err := s.Sign([]byte("msg"))
	require.NoError(t, err)
	assert.Len(t, sig, 64)

	_, err = NewKeypairSigner("garbage")
	assert.Error(t, err)
}

func TestResolveInstructionsFlags(t *testing.T) {
	signer := newSigner(t)
	payer, err := ParsePublicKey(signer.PublicKey())
	require.NoError(t, err)
	target, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	tx, err := BuildTransaction(TxRequest{
		Payer:     payer,
		Blockhash: solana.Hash{4},
		Instructions: []domain.Instruction{{
			ProgramID: solana.SystemProgramID.String(),
			Accounts: []domain.AccountMeta{
				{Pubkey: payer.String(), IsSigner: true, IsWritable: true},
				{Pubkey: target.PublicKey().String(), IsWritable: true},
			},
			Data: []byte{2, 0, 0, 0},
		}},
	})
	require.NoError(t, err)

	lookup, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	ixs := resolveInstructions(tx.Message, solana.PublicKeySlice{lookup.PublicKey()}, nil)
	require.Len(t, ixs, 1)
	ix := ixs[0]
	assert.Equal(t, solana.SystemProgramID.String(), ix.ProgramID)
	assert.Equal(t, []byte{2, 0, 0, 0}, ix.Data)
	require.Len(t, ix.Accounts, 2)
	assert.Equal(t, domain.AccountMeta{Pubkey: payer.String(), IsSigner: true, IsWritable: true}, ix.Accounts[0])
	assert.Equal(t, domain.AccountMeta{Pubkey: target.PublicKey().String(), IsWritable: true}, ix.Accounts[1])
}
