// Package chainid derives and validates ledger chain identifiers.
//
// An identifier is minted from fresh random bytes hashed through SHA-256
// and RIPEMD-160, prefixed with a version byte, armoured with a 4-byte
// double-SHA-256 checksum and Base58-encoded. The checksum lets handlers
// reject mistyped identifiers before touching storage.
package chainid

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

const (
	version     = byte(0x1c)
	checksumLen = 4
	seedLen     = 32
)

// New mints a fresh chain identifier.
func New() (string, error) {
	seed := make([]byte, seedLen)
	if _, err := rand.Read(seed); err != nil {
		return "", err
	}
	return fromSeed(seed), nil
}

func fromSeed(seed []byte) string {
	digest := sha256.Sum256(seed)

	hasher := ripemd160.New()
	hasher.Write(digest[:])
	body := hasher.Sum(nil)

	payload := append([]byte{version}, body...)
	full := append(payload, checksum(payload)...)
	return base58.Encode(full)
}

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:checksumLen]
}

// Valid reports whether id decodes to a well-formed identifier of the
// current version with an intact checksum.
func Valid(id string) bool {
	raw, err := base58.Decode(id)
	if err != nil {
		return false
	}
	if len(raw) != 1+ripemd160.Size+checksumLen {
		return false
	}
	if raw[0] != version {
		return false
	}
	payload := raw[:len(raw)-checksumLen]
	sum := raw[len(raw)-checksumLen:]
	return bytes.Equal(sum, checksum(payload))
}
