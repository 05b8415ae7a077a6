package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/tez-capital/cryptoblob"
)

// loadOrCreateMasterKey reads a hex-encoded master key from path,
// generating and persisting a fresh one if the file does not exist
// yet. This is the one piece of key material the CLI keeps in plain
// hex on disk rather than behind the keyring's password wrap, since
// it is meant to live on the single trusted packer host, analogous to
// how the reference backends treat the blob object itself.
func loadOrCreateMasterKey(path string) (cryptoblob.SymmetricKey, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return parseMasterKeyHex(string(raw))
	}
	if !os.IsNotExist(err) {
		return cryptoblob.SymmetricKey{}, fmt.Errorf("read master key %s: %w", path, err)
	}

	key, err := cryptoblob.NewSymmetricKey()
	if err != nil {
		return key, fmt.Errorf("generate master key: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key[:])+"\n"), 0o600); err != nil {
		return key, fmt.Errorf("write master key %s: %w", path, err)
	}
	return key, nil
}

func parseMasterKeyHex(s string) (cryptoblob.SymmetricKey, error) {
	var key cryptoblob.SymmetricKey
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return key, fmt.Errorf("decode master key: %w", err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("master key must be %d bytes, got %d", len(key), len(raw))
	}
	copy(key[:], raw)
	return key, nil
}
