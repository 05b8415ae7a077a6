package cryptoblob

import (
	"bytes"
	"testing"
)

func TestTenantReaderKeyRoundtrip(t *testing.T) {
	readerKey := bytes.Repeat([]byte{0xab}, 64)
	s := FormatTenantReaderKey(7, readerKey)

	keyID, got, err := ParseTenantReaderKey(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if keyID != 7 {
		t.Fatalf("key id mismatch: got %d", keyID)
	}
	if !bytes.Equal(got, readerKey) {
		t.Fatalf("reader key mismatch")
	}
}

func TestParseTenantReaderKeyRejectsMissingSeparator(t *testing.T) {
	if _, _, err := ParseTenantReaderKey("nocoloninhere"); err == nil {
		t.Fatalf("expected error for missing separator")
	}
}
