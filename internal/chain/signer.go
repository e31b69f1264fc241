package chain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

// Compile-time interface check.
var _ domain.Signer = (*KeypairSigner)(nil)

// KeypairSigner signs with an in-memory ed25519 keypair.
type KeypairSigner struct {
	key solana.PrivateKey
	pub solana.PublicKey
}

// NewKeypairSigner parses a base58-encoded 64-byte keypair.
func NewKeypairSigner(base58Key string) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, fmt.Errorf("chain: parse keypair: %w", err)
	}
	return &KeypairSigner{key: key, pub: key.PublicKey()}, nil
}

// NewKeypairSignerFromKey wraps an already decoded key.
func NewKeypairSignerFromKey(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key, pub: key.PublicKey()}
}

// PublicKey returns the base58 public key.
func (s *KeypairSigner) PublicKey() string {
	return s.pub.String()
}

// Sign signs message and returns the 64-byte signature.
func (s *KeypairSigner) Sign(message []byte) ([]byte, error) {
	sig, err := s.key.Sign(message)
	if err != nil {
		return nil, fmt.Errorf("chain: %w: %v", domain.ErrSigningFailed, err)
	}
	return sig[:], nil
}
