package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefix is accepted, and ignored, on signatures passed to Verify.
const signaturePrefix = "sha256="

// HMACSignatureService signs webhook bodies with HMAC-SHA256 under the
// endpoint secret.
type HMACSignatureService struct{}

func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign returns the lowercase hex digest of payload.
func (s *HMACSignatureService) Sign(secret string, payload []byte) string {
	return hex.EncodeToString(digest(secret, payload))
}

// Verify decodes signature and compares digests in constant time. Hex case
// and a leading "sha256=" do not matter.
func (s *HMACSignatureService) Verify(secret string, payload []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(signature, signaturePrefix))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	return hmac.Equal(got, digest(secret, payload))
}

func digest(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
