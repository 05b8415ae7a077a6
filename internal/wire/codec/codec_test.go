package codec

import (
	"bytes"
	"testing"
)

func TestWriterReaderScalarRoundtrip(t *testing.T) {
	w := NewWriter()
	w.Long(-12345).Int(42).Bool(true).Bool(false).String("tenants/acme").BytesField([]byte{1, 2, 3})

	r := NewReader(w.Bytes())
	if v, err := r.Long(); err != nil || v != -12345 {
		t.Fatalf("long: got %d, %v", v, err)
	}
	if v, err := r.Int(); err != nil || v != 42 {
		t.Fatalf("int: got %d, %v", v, err)
	}
	if v, err := r.Bool(); err != nil || v != true {
		t.Fatalf("bool true: got %v, %v", v, err)
	}
	if v, err := r.Bool(); err != nil || v != false {
		t.Fatalf("bool false: got %v, %v", v, err)
	}
	if v, err := r.String(); err != nil || v != "tenants/acme" {
		t.Fatalf("string: got %q, %v", v, err)
	}
	if v, err := r.BytesField(); err != nil || !bytes.Equal(v, []byte{1, 2, 3}) {
		t.Fatalf("bytes: got %v, %v", v, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected no remaining bytes, got %d", r.Remaining())
	}
}

func TestWriterReaderBlocksRoundtrip(t *testing.T) {
	items := []string{"a", "bb", "ccc"}
	w := NewWriter()
	w.BlockCount(len(items))
	for _, it := range items {
		w.String(it)
	}
	w.EndBlocks()

	r := NewReader(w.Bytes())
	n, err := r.BlockCount()
	if err != nil {
		t.Fatalf("block count: %v", err)
	}
	got := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		s, err := r.String()
		if err != nil {
			t.Fatalf("string %d: %v", i, err)
		}
		got = append(got, s)
	}
	term, err := r.BlockCount()
	if err != nil || term != 0 {
		t.Fatalf("expected terminating zero block, got %d, %v", term, err)
	}
	if len(got) != len(items) {
		t.Fatalf("got %v, want %v", got, items)
	}
	for i := range items {
		if got[i] != items[i] {
			t.Fatalf("index %d: got %q, want %q", i, got[i], items[i])
		}
	}
}

func TestNegativeLongRoundtrip(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 127, -128, 1 << 40, -(1 << 40)} {
		w := NewWriter()
		w.Long(n)
		r := NewReader(w.Bytes())
		got, err := r.Long()
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if got != n {
			t.Fatalf("n=%d: got %d", n, got)
		}
	}
}

func TestCompressRoundtrip(t *testing.T) {
	plain := bytes.Repeat([]byte("cryptoblob partition payload "), 200)

	compressed, err := Compress(plain)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(compressed) >= len(plain) {
		t.Fatalf("expected compression to shrink repetitive input: %d >= %d", len(compressed), len(plain))
	}

	got, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("roundtrip mismatch: got %d bytes, want %d", len(got), len(plain))
	}
}

func TestCompressEmpty(t *testing.T) {
	compressed, err := Compress(nil)
	if err != nil {
		t.Fatalf("compress empty: %v", err)
	}
	got, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty roundtrip, got %d bytes", len(got))
	}
}
