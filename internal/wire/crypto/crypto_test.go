package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tez-capital/cryptoblob/internal/errkind"
)

func TestSymmetricRoundtrip(t *testing.T) {
	key, err := NewSymmetricKey()
	if err != nil {
		t.Fatalf("new key: %v", err)
	}
	plaintext := []byte("hello tenant partition")

	ciphertext, err := Seal(plaintext, key)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	got, err := Open(ciphertext, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("roundtrip mismatch: got %q want %q", got, plaintext)
	}
}

func TestSymmetricOpenRejectsBitFlip(t *testing.T) {
	key, _ := NewSymmetricKey()
	ciphertext, _ := Seal([]byte("abc"), key)
	ciphertext[len(ciphertext)-1] ^= 0x01

	if _, err := Open(ciphertext, key); !errors.Is(err, errkind.ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
}

func TestSymmetricOpenRejectsWrongKey(t *testing.T) {
	key, _ := NewSymmetricKey()
	other, _ := NewSymmetricKey()
	ciphertext, _ := Seal([]byte("abc"), key)

	if _, err := Open(ciphertext, other); !errors.Is(err, errkind.ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
}

func TestAsymmetricRoundtrip(t *testing.T) {
	writerKey, readerKey, err := NewAsymmetricKeypair()
	if err != nil {
		t.Fatalf("new keypair: %v", err)
	}
	plaintext := []byte("tenant manifest bytes")

	sealed, err := SealToTenant(plaintext, writerKey)
	if err != nil {
		t.Fatalf("seal to tenant: %v", err)
	}

	got, err := OpenFromMaster(sealed, readerKey)
	if err != nil {
		t.Fatalf("open from master: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("roundtrip mismatch: got %q want %q", got, plaintext)
	}
}

func TestAsymmetricWrongReaderFails(t *testing.T) {
	writerKey, _, err := NewAsymmetricKeypair()
	if err != nil {
		t.Fatalf("new keypair: %v", err)
	}
	_, otherReaderKey, err := NewAsymmetricKeypair()
	if err != nil {
		t.Fatalf("new keypair: %v", err)
	}

	sealed, err := SealToTenant([]byte("secret"), writerKey)
	if err != nil {
		t.Fatalf("seal to tenant: %v", err)
	}

	if _, err := OpenFromMaster(sealed, otherReaderKey); !errors.Is(err, errkind.ErrCrypto) {
		t.Fatalf("expected ErrCrypto for mismatched reader key, got %v", err)
	}
}

func TestAsymmetricBitFlipFails(t *testing.T) {
	writerKey, readerKey, err := NewAsymmetricKeypair()
	if err != nil {
		t.Fatalf("new keypair: %v", err)
	}
	sealed, err := SealToTenant([]byte("secret"), writerKey)
	if err != nil {
		t.Fatalf("seal to tenant: %v", err)
	}
	sealed[len(sealed)-1] ^= 0x01

	if _, err := OpenFromMaster(sealed, readerKey); !errors.Is(err, errkind.ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
}
