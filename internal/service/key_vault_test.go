package service

import (
	"encoding/hex"
	"strings"
	"testing"

	"settlement-gateway/internal/core/domain"
	"settlement-gateway/pkg/address"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVaultSecret = "8f2a6c1e9b3d5f7a0c2e4a6c8e0a2c4e6a8c0e2a4c6e8a0c2e4a6c8e0a2c4e6a"

func newTestVault(t *testing.T) *KeyVault {
	t.Helper()
	v, err := NewKeyVault(testVaultSecret, "testnet")
	require.NoError(t, err)
	return v
}

func TestNewKeyVault_Invalid(t *testing.T) {
	_, err := NewKeyVault("zz", "testnet")
	assert.Error(t, err)

	_, err = NewKeyVault("abcd", "testnet")
	assert.ErrorContains(t, err, "32 bytes")

	_, err = NewKeyVault(testVaultSecret, "simnet")
	assert.Error(t, err)
}

func TestKeyVault_GenerateAndDecrypt(t *testing.T) {
	v := newTestVault(t)

	key, err := v.GenerateAddress("pay_A")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key.Address, "ST"))
	assert.True(t, strings.HasPrefix(key.EncryptedPrivateKey, "v1:"))

	raw, err := v.Decrypt(key.EncryptedPrivateKey, "pay_A")
	require.NoError(t, err)
	require.Len(t, raw, 32)

	// The address is derived from the key that was sealed.
	pub := secp256k1.PrivKeyFromBytes(raw).PubKey().SerializeCompressed()
	assert.Equal(t, key.Address, address.FromPublicKey(pub, address.VersionTestnet))
}

func TestKeyVault_FreshKeyPerPayment(t *testing.T) {
	v := newTestVault(t)

	a, err := v.GenerateAddress("pay_A")
	require.NoError(t, err)
	b, err := v.GenerateAddress("pay_A")
	require.NoError(t, err)

	assert.NotEqual(t, a.Address, b.Address)
	assert.NotEqual(t, a.EncryptedPrivateKey, b.EncryptedPrivateKey)
}

func TestKeyVault_ContextBinding(t *testing.T) {
	v := newTestVault(t)

	key, err := v.GenerateAddress("pay_A")
	require.NoError(t, err)

	_, err = v.Decrypt(key.EncryptedPrivateKey, "pay_B")
	assert.ErrorIs(t, err, domain.ErrKeyDecryption)
}

func TestKeyVault_PlaintextNeverInBlob(t *testing.T) {
	v := newTestVault(t)

	key, err := v.GenerateAddress("pay_A")
	require.NoError(t, err)
	raw, err := v.Decrypt(key.EncryptedPrivateKey, "pay_A")
	require.NoError(t, err)

	assert.NotContains(t, key.EncryptedPrivateKey, hex.EncodeToString(raw))
}

func TestKeyVault_DecryptRejectsCorruption(t *testing.T) {
	v := newTestVault(t)
	key, err := v.GenerateAddress("pay_A")
	require.NoError(t, err)

	flipped := []byte(key.EncryptedPrivateKey)
	last := len(flipped) - 1
	if flipped[last] == '0' {
		flipped[last] = '1'
	} else {
		flipped[last] = '0'
	}

	other, err := NewKeyVault("0000000000000000000000000000000000000000000000000000000000000001", "testnet")
	require.NoError(t, err)

	tests := map[string]struct {
		vault *KeyVault
		blob  string
	}{
		"flipped byte":    {v, string(flipped)},
		"unknown version": {v, "v2:" + strings.TrimPrefix(key.EncryptedPrivateKey, "v1:")},
		"not hex":         {v, "v1:zzzz"},
		"truncated":       {v, key.EncryptedPrivateKey[:10]},
		"other secret":    {other, key.EncryptedPrivateKey},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tt.vault.Decrypt(tt.blob, "pay_A")
			assert.ErrorIs(t, err, domain.ErrKeyDecryption)
		})
	}
}

func TestKeyVault_GenerateRequiresPaymentID(t *testing.T) {
	_, err := newTestVault(t).GenerateAddress("")
	assert.ErrorIs(t, err, domain.ErrKeyGeneration)
}
