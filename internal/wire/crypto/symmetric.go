// Package crypto implements the symmetric and asymmetric primitives
// the blob format is built on: a NaCl secretbox for partition/manifest
// encryption, and a sealed-and-signed composite channel for tenant
// manifests.
package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/tez-capital/cryptoblob/internal/errkind"
)

// KeySize is the width of a symmetric partition/manifest key.
const KeySize = 32

const nonceSize = 24

// SymmetricKey is a fixed 32-byte secretbox key.
type SymmetricKey [KeySize]byte

// NewSymmetricKey draws a fresh uniformly random symmetric key.
func NewSymmetricKey() (SymmetricKey, error) {
	var k SymmetricKey
	if _, err := rand.Read(k[:]); err != nil {
		return k, fmt.Errorf("new symmetric key: %w", err)
	}
	return k, nil
}

// Seal encrypts plaintext under key, prepending a fresh random 24-byte
// nonce and appending a 16-byte Poly1305 authenticator (NaCl secretbox
// framing).
func Seal(plaintext []byte, key SymmetricKey) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("seal: draw nonce: %w", err)
	}
	out := make([]byte, 0, nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plaintext, &nonce, (*[KeySize]byte)(&key))
	return out, nil
}

// Open authenticates and decrypts a blob produced by Seal. It fails with
// errkind.ErrCrypto if the nonce framing is short or the authenticator
// does not verify.
func Open(ciphertext []byte, key SymmetricKey) ([]byte, error) {
	if len(ciphertext) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: secretbox ciphertext too short", errkind.ErrCrypto)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, (*[KeySize]byte)(&key))
	if !ok {
		return nil, fmt.Errorf("%w: secretbox authentication failed", errkind.ErrCrypto)
	}
	return plaintext, nil
}

// IsHole reports whether a positional partition-key slot in a tenant
// manifest is an unused-partition hole.
func IsHole(raw []byte) bool {
	return len(raw) == 0
}

// KeyFromBytes re-derives a SymmetricKey from raw bytes already known to
// be KeySize long (e.g. a positional partition_keys entry decoded off
// the wire). It panics on wrong length, reflecting a schema/codec bug
// rather than an attacker-controlled condition.
func KeyFromBytes(raw []byte) SymmetricKey {
	if len(raw) != KeySize {
		panic(fmt.Sprintf("crypto: symmetric key must be %d bytes, got %d", KeySize, len(raw)))
	}
	var k SymmetricKey
	copy(k[:], raw)
	return k
}
