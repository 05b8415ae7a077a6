package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"github.com/tez-capital/cryptoblob/internal/errkind"
)

// Sizes of the packed key materials.
// writer_key = curve25519 public key (32) || ed25519 signing seed (32).
// reader_key = curve25519 private key (32) || ed25519 verify key (32).
const (
	boxKeySize    = 32
	signSeedSize  = ed25519.SeedSize // 32
	verifyKeySize = ed25519.PublicKeySize

	WriterKeySize = boxKeySize + signSeedSize
	ReaderKeySize = boxKeySize + verifyKeySize

	sealedKeyLenPrefixSize = 2 // uint16_be
)

// NewAsymmetricKeypair draws a fresh Curve25519 keypair (for the sealed
// box) and a fresh Ed25519 keypair (for the signature), and packs them
// into the frozen writer/reader byte layouts.
func NewAsymmetricKeypair() (writerKey, readerKey []byte, err error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("new asymmetric keypair: box: %w", err)
	}

	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("new asymmetric keypair: sign: %w", err)
	}
	seed := signPriv.Seed()

	writerKey = make([]byte, 0, WriterKeySize)
	writerKey = append(writerKey, pub[:]...)
	writerKey = append(writerKey, seed...)

	readerKey = make([]byte, 0, ReaderKeySize)
	readerKey = append(readerKey, priv[:]...)
	readerKey = append(readerKey, signPub...)

	return writerKey, readerKey, nil
}

// SealToTenant draws an ephemeral symmetric key, seals it anonymously
// to the reader's Curve25519 public
// key, sign the plaintext with the writer's Ed25519 key, then encrypt
// the signature-and-message under the ephemeral key.
func SealToTenant(plaintext, writerKey []byte) ([]byte, error) {
	if len(writerKey) != WriterKeySize {
		return nil, fmt.Errorf("seal to tenant: writer key must be %d bytes, got %d", WriterKeySize, len(writerKey))
	}
	var recipientPub [boxKeySize]byte
	copy(recipientPub[:], writerKey[:boxKeySize])
	signSeed := writerKey[boxKeySize:WriterKeySize]
	signer := ed25519.NewKeyFromSeed(signSeed)

	ephemeral, err := NewSymmetricKey()
	if err != nil {
		return nil, fmt.Errorf("seal to tenant: %w", err)
	}

	sealedEphemeral, err := box.SealAnonymous(nil, ephemeral[:], &recipientPub, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("seal to tenant: seal ephemeral key: %w", err)
	}

	signature := ed25519.Sign(signer, plaintext)
	signedMessage := make([]byte, 0, len(signature)+len(plaintext))
	signedMessage = append(signedMessage, signature...)
	signedMessage = append(signedMessage, plaintext...)

	encryptedSigned, err := Seal(signedMessage, ephemeral)
	if err != nil {
		return nil, fmt.Errorf("seal to tenant: %w", err)
	}

	out := make([]byte, 0, sealedKeyLenPrefixSize+len(sealedEphemeral)+len(encryptedSigned))
	var lenPrefix [sealedKeyLenPrefixSize]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(sealedEphemeral)))
	out = append(out, lenPrefix[:]...)
	out = append(out, sealedEphemeral...)
	out = append(out, encryptedSigned...)
	return out, nil
}

// OpenFromMaster reverses the framing, opens the sealed ephemeral key
// with the reader's private
// Curve25519 key, decrypt the signed payload, then verify the Ed25519
// signature with the embedded verify key.
func OpenFromMaster(blob, readerKey []byte) ([]byte, error) {
	if len(readerKey) != ReaderKeySize {
		return nil, fmt.Errorf("open from master: reader key must be %d bytes, got %d", ReaderKeySize, len(readerKey))
	}
	if len(blob) < sealedKeyLenPrefixSize {
		return nil, fmt.Errorf("%w: asymmetric blob shorter than length prefix", errkind.ErrCrypto)
	}

	sealedLen := int(binary.BigEndian.Uint16(blob[:sealedKeyLenPrefixSize]))
	rest := blob[sealedKeyLenPrefixSize:]
	if sealedLen > len(rest) {
		return nil, fmt.Errorf("%w: asymmetric blob truncated", errkind.ErrCrypto)
	}
	sealedEphemeral := rest[:sealedLen]
	encryptedSigned := rest[sealedLen:]

	var priv [boxKeySize]byte
	copy(priv[:], readerKey[:boxKeySize])
	verifyKey := ed25519.PublicKey(readerKey[boxKeySize:ReaderKeySize])

	// box.GenerateKey never needed here; derive the matching public key
	// only to satisfy OpenAnonymous's API, which wants both halves.
	pub := derivePublicFromPrivate(priv)

	ephemeralBytes, ok := box.OpenAnonymous(nil, sealedEphemeral, &pub, &priv)
	if !ok {
		return nil, fmt.Errorf("%w: failed to open sealed ephemeral key", errkind.ErrCrypto)
	}
	if len(ephemeralBytes) != KeySize {
		return nil, fmt.Errorf("%w: unexpected ephemeral key length", errkind.ErrCrypto)
	}
	ephemeral := KeyFromBytes(ephemeralBytes)

	signedMessage, err := Open(encryptedSigned, ephemeral)
	if err != nil {
		return nil, err
	}
	if len(signedMessage) < ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: signed message shorter than a signature", errkind.ErrCrypto)
	}
	signature := signedMessage[:ed25519.SignatureSize]
	plaintext := signedMessage[ed25519.SignatureSize:]

	if !ed25519.Verify(verifyKey, plaintext, signature) {
		return nil, fmt.Errorf("%w: signature verification failed", errkind.ErrCrypto)
	}
	return plaintext, nil
}

// derivePublicFromPrivate recovers a Curve25519 public key from its
// private scalar via the fixed base-point scalar multiplication that
// box.GenerateKey itself uses internally.
func derivePublicFromPrivate(priv [boxKeySize]byte) [boxKeySize]byte {
	var pub [boxKeySize]byte
	curve25519ScalarBaseMult(&pub, &priv)
	return pub
}
