package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"settlement-gateway/internal/core/domain"
	"settlement-gateway/pkg/address"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/hkdf"
)

const (
	keyBlobVersion = "v1:"
	keyInfoPrefix  = "deposit-key:"
)

// KeyVault implements ports.KeyVault. Each payment's private key is sealed
// with AES-256-GCM under a key derived by HKDF from the master secret and
// the payment ID, and the payment ID is bound again as additional data.
type KeyVault struct {
	master  []byte
	version byte
}

// NewKeyVault builds a vault from a 32-byte hex master secret.
func NewKeyVault(hexSecret, network string) (*KeyVault, error) {
	master, err := hex.DecodeString(hexSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding vault secret: %w", err)
	}
	if len(master) != 32 {
		return nil, fmt.Errorf("vault secret must be 32 bytes, got %d", len(master))
	}
	version, err := address.VersionFor(network)
	if err != nil {
		return nil, err
	}
	return &KeyVault{master: master, version: version}, nil
}

// GenerateAddress creates a fresh keypair for paymentID and returns its
// deposit address with the sealed private key. The plaintext key never
// leaves this function.
func (v *KeyVault) GenerateAddress(paymentID string) (*domain.DepositKey, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("%w: empty payment id", domain.ErrKeyGeneration)
	}

	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	defer priv.Zero()

	key, err := v.deriveKey(paymentID)
	if err != nil {
		return nil, err
	}

	raw := priv.Serialize()
	defer clear(raw)

	sealed, err := sealGCM(key, raw, []byte(paymentID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}

	return &domain.DepositKey{
		Address:             address.FromPublicKey(priv.PubKey().SerializeCompressed(), v.version),
		EncryptedPrivateKey: keyBlobVersion + hex.EncodeToString(sealed),
	}, nil
}

// Decrypt opens a sealed key. Any mismatch of payment ID, secret or bytes
// yields domain.ErrKeyDecryption.
func (v *KeyVault) Decrypt(encryptedPrivateKey, paymentID string) ([]byte, error) {
	body, ok := strings.CutPrefix(encryptedPrivateKey, keyBlobVersion)
	if !ok {
		return nil, fmt.Errorf("%w: unknown blob version", domain.ErrKeyDecryption)
	}
	sealed, err := hex.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyDecryption, err)
	}

	key, err := v.deriveKey(paymentID)
	if err != nil {
		return nil, err
	}

	raw, err := openGCM(key, sealed, []byte(paymentID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyDecryption, err)
	}
	if len(raw) != secp256k1.PrivKeyBytesLen {
		clear(raw)
		return nil, fmt.Errorf("%w: unexpected key length %d", domain.ErrKeyDecryption, len(raw))
	}
	return raw, nil
}

func (v *KeyVault) deriveKey(paymentID string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, v.master, nil, []byte(keyInfoPrefix+paymentID))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Join(domain.ErrKeyGeneration, err)
	}
	return key, nil
}
