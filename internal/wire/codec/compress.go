// Package codec implements the container serialisation layer: a
// minimal Avro-schemaless-compatible binary encoder/decoder plus the
// LZMA2 raw-stream compression wrapped around partition, master, and
// tenant records.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzma2DictCap mirrors the dictionary size xz uses for
// lzma.FILTER_LZMA2 preset=5: 8 MiB.
const lzma2DictCap = 8 << 20

// Compress applies the LZMA2 raw-stream filter (no container header) at
// a preset-5-equivalent dictionary size, the compression step in the
// encode-compress-encrypt pipeline for partition/master/tenant
// records.
func Compress(plain []byte) ([]byte, error) {
	cfg := lzma.Writer2Config{DictCap: lzma2DictCap}
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("compress: configure lzma2: %w", err)
	}

	var buf bytes.Buffer
	w, err := cfg.NewWriter2(&buf)
	if err != nil {
		return nil, fmt.Errorf("compress: new lzma2 writer: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compress: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress: raw headerless LZMA2 stream to plaintext.
func Decompress(compressed []byte) ([]byte, error) {
	cfg := lzma.Reader2Config{}
	r, err := cfg.NewReader2(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress: new lzma2 reader: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompress: read: %w", err)
	}
	return plain, nil
}
