// Package address derives c32check ledger addresses from secp256k1 public keys.
package address

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // hash160 is fixed by the address format
)

const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Single-signature address versions.
const (
	VersionMainnet byte = 22 // SP...
	VersionTestnet byte = 26 // ST...
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrChecksum       = errors.New("address checksum mismatch")
)

// VersionFor maps a network name to its address version.
func VersionFor(network string) (byte, error) {
	switch network {
	case "mainnet":
		return VersionMainnet, nil
	case "testnet":
		return VersionTestnet, nil
	}
	return 0, fmt.Errorf("unknown network %q", network)
}

// Hash160 is RIPEMD-160(SHA-256(b)).
func Hash160(b []byte) []byte {
	sum := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}

// FromPublicKey returns the address of a compressed public key.
func FromPublicKey(compressedPubKey []byte, version byte) string {
	return Encode(version, Hash160(compressedPubKey))
}

// Encode builds "S" + version character + c32(hash || checksum).
func Encode(version byte, hash []byte) string {
	payload := make([]byte, 0, len(hash)+4)
	payload = append(payload, hash...)
	payload = append(payload, checksum(version, hash)...)
	return "S" + string(alphabet[version]) + c32Encode(payload)
}

// Decode validates addr and returns its version and hash.
func Decode(addr string) (byte, []byte, error) {
	if len(addr) < 3 || addr[0] != 'S' {
		return 0, nil, ErrInvalidAddress
	}
	version := strings.IndexByte(alphabet, normalize(addr[1]))
	if version < 0 {
		return 0, nil, ErrInvalidAddress
	}

	payload, err := c32Decode(addr[2:])
	if err != nil {
		return 0, nil, err
	}
	if len(payload) < 5 {
		return 0, nil, ErrInvalidAddress
	}

	hash, sum := payload[:len(payload)-4], payload[len(payload)-4:]
	if !bytes.Equal(sum, checksum(byte(version), hash)) {
		return 0, nil, ErrChecksum
	}
	return byte(version), hash, nil
}

func checksum(version byte, hash []byte) []byte {
	first := sha256.Sum256(append([]byte{version}, hash...))
	second := sha256.Sum256(first[:])
	return second[:4]
}

func c32Encode(data []byte) string {
	n := new(big.Int).SetBytes(data)
	base := big.NewInt(32)
	mod := new(big.Int)

	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		out = append(out, alphabet[mod.Int64()])
	}
	for _, b := range data {
		if b != 0 {
			break
		}
		out = append(out, '0')
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func c32Decode(s string) ([]byte, error) {
	zeros := 0
	for zeros < len(s) && normalize(s[zeros]) == '0' {
		zeros++
	}

	n := new(big.Int)
	base := big.NewInt(32)
	for i := zeros; i < len(s); i++ {
		d := strings.IndexByte(alphabet, normalize(s[i]))
		if d < 0 {
			return nil, fmt.Errorf("%w: bad character %q", ErrInvalidAddress, s[i])
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(d)))
	}

	return append(make([]byte, zeros), n.Bytes()...), nil
}

// normalize applies the c32 aliases: lower case, O for 0, I and L for 1.
func normalize(c byte) byte {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	switch c {
	case 'O':
		return '0'
	case 'I', 'L':
		return '1'
	}
	return c
}
