package cryptoblob

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// FormatTenantReaderKey renders a tenant's key_id and reader_key as
// "<key_id>:<reader_key_hex>", used wherever a reader key needs to
// travel as a string (CLI output, a config file, a paste into a
// terminal).
func FormatTenantReaderKey(keyID int32, readerKey []byte) string {
	return fmt.Sprintf("%d:%s", keyID, hex.EncodeToString(readerKey))
}

// ParseTenantReaderKey reverses FormatTenantReaderKey.
func ParseTenantReaderKey(s string) (keyID int32, readerKey []byte, err error) {
	idPart, hexPart, ok := strings.Cut(s, ":")
	if !ok {
		return 0, nil, fmt.Errorf("tenant reader key: missing ':' separator")
	}
	id, err := strconv.ParseInt(idPart, 10, 32)
	if err != nil {
		return 0, nil, fmt.Errorf("tenant reader key: bad key_id: %w", err)
	}
	readerKey, err = hex.DecodeString(hexPart)
	if err != nil {
		return 0, nil, fmt.Errorf("tenant reader key: bad hex: %w", err)
	}
	return int32(id), readerKey, nil
}
