package service

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestNewAESEncryptionService_KeyValidation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr string
	}{
		{"not hex", "shortkey", "decoding AES key"},
		{"too short", "abcd", "32 bytes"},
		{"too long", testAESKey + "00", "32 bytes"},
		{"valid", testAESKey, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewAESEncryptionService(tt.key)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.NotNil(t, svc)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAESEncryptionService_WebhookSecretRoundTrip(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	secret := "whsec_3f9a0c"
	first, err := svc.Encrypt(secret)
	require.NoError(t, err)
	second, err := svc.Encrypt(secret)
	require.NoError(t, err)

	assert.NotContains(t, first, secret)
	assert.NotEqual(t, first, second, "fresh nonce per call")

	for _, ct := range []string{first, second} {
		got, err := svc.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, secret, got)
	}
}

func TestAESEncryptionService_DecryptRejects(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	other, err := NewAESEncryptionService("abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789")
	require.NoError(t, err)

	ct, err := svc.Encrypt("whsec_x")
	require.NoError(t, err)
	raw, err := hex.DecodeString(ct)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01

	_, err = svc.Decrypt(hex.EncodeToString(raw))
	assert.ErrorContains(t, err, "decrypting")

	_, err = other.Decrypt(ct)
	assert.Error(t, err)

	_, err = svc.Decrypt("not-hex-at-all!!!")
	assert.ErrorContains(t, err, "decoding ciphertext")

	_, err = svc.Decrypt("abcdef")
	assert.ErrorIs(t, err, errCiphertextTooShort)
}
