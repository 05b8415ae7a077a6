package crypto

import "golang.org/x/crypto/curve25519"

// curve25519ScalarBaseMult recovers a Curve25519 public key from its
// private scalar. box.GenerateKey performs the same base-point
// multiplication internally; we need it again when a reader_key only
// carries the private half and box.OpenAnonymous needs both.
func curve25519ScalarBaseMult(dst, priv *[32]byte) {
	curve25519.ScalarBaseMult(dst, priv)
}
