package main

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// blobFingerprintPrefix tags fingerprints so they are visually
// distinct from tenant reader keys or Tezos-style addresses a user
// might have in the same terminal scrollback.
var blobFingerprintPrefix = []byte{0x0c, 0x66}

// fingerprint renders Base58Check(prefix || sha256(payload)[:20]), a
// short human-comparable digest for blob identity checks (e.g.
// confirming two operators packed the same bytes) without printing
// the full blob.
func fingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return b58CheckEncode(blobFingerprintPrefix, sum[:20])
}

// Base58Check(prefix || payload || doubleSHA256(prefix||payload)[0:4])
func b58CheckEncode(prefix, payload []byte) string {
	n := len(prefix) + len(payload)
	buf := make([]byte, n+4)
	copy(buf, prefix)
	copy(buf[len(prefix):], payload)

	sum1 := sha256.Sum256(buf[:n])
	sum2 := sha256.Sum256(sum1[:])
	copy(buf[n:], sum2[:4])

	return base58.Encode(buf)
}
