package seal

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tez-capital/cryptoblob/internal/blobmodel"
	"github.com/tez-capital/cryptoblob/internal/errkind"
	"github.com/tez-capital/cryptoblob/internal/partition"
	wirecrypto "github.com/tez-capital/cryptoblob/internal/wire/crypto"
)

func newCollectionWithFiles(files map[string]string) *blobmodel.FilesCollection {
	fc := blobmodel.NewFilesCollection()
	for path, body := range files {
		fc.Files[path] = blobmodel.FilesCollectionItem{BodyID: fc.Intern([]byte(body))}
	}
	return fc
}

func mustPartition(t *testing.T, files map[string]string) *blobmodel.FilesPartitions {
	t.Helper()
	fp, err := partition.Partition(newCollectionWithFiles(files))
	if err != nil {
		t.Fatalf("partition: %v", err)
	}
	return fp
}

func TestPackDumpLoadRoundtrip(t *testing.T) {
	fp := mustPartition(t, map[string]string{
		"master/a":      "abc",
		"tenants/one/b": "v",
		"tenants/two/b": "v",
	})
	masterKey, err := wirecrypto.NewSymmetricKey()
	if err != nil {
		t.Fatalf("new master key: %v", err)
	}

	result, err := Pack(fp, masterKey, nil, 0)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	dumped := Dump(result.Blob)
	loaded, err := Load(dumped)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.MaxID != result.Blob.MaxID {
		t.Fatalf("max_id mismatch: got %d, want %d", loaded.MaxID, result.Blob.MaxID)
	}
	if len(loaded.XPartitions) != len(result.Blob.XPartitions) {
		t.Fatalf("partition count mismatch: got %d, want %d", len(loaded.XPartitions), len(result.Blob.XPartitions))
	}

	mm, err := UnsealMaster(loaded, masterKey)
	if err != nil {
		t.Fatalf("unseal master: %v", err)
	}
	src := NewPartitionSource(loaded, MasterPartitionKey(mm))

	item := mm.Files[blobmodel.MasterPrincipal]["a"]
	body, err := src.Body(item.PartitionID, item.BodyID)
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if !bytes.Equal(body, []byte("abc")) {
		t.Fatalf("body mismatch: got %q", body)
	}
}

func TestPackMintsDistinctTenantKeyIDsStartingAfterMaxID(t *testing.T) {
	fp := mustPartition(t, map[string]string{
		"tenants/one/a": "1",
		"tenants/two/b": "2",
	})
	masterKey, _ := wirecrypto.NewSymmetricKey()

	result, err := Pack(fp, masterKey, nil, 5)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	ids := map[int32]bool{}
	for _, tk := range result.TenantsKeys {
		if tk.KeyID <= 5 {
			t.Fatalf("expected key_id to be minted above max_id 5, got %d", tk.KeyID)
		}
		ids[tk.KeyID] = true
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 distinct key_ids, got %v", ids)
	}
}

func TestTenantRoundtripAndCrossTenantFailure(t *testing.T) {
	fp := mustPartition(t, map[string]string{
		"tenants/one/b": "v",
		"tenants/two/b": "v",
	})
	masterKey, _ := wirecrypto.NewSymmetricKey()

	result, err := Pack(fp, masterKey, nil, 0)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	var oneKeyID, twoKeyID int32
	var oneReaderKey, twoReaderKey []byte
	for _, tk := range result.TenantsKeys {
		switch tk.Name {
		case "one":
			oneKeyID, oneReaderKey = tk.KeyID, tk.ReaderKey
		case "two":
			twoKeyID, twoReaderKey = tk.KeyID, tk.ReaderKey
		}
	}

	tm, err := OpenTenant(result.Blob, oneKeyID, oneReaderKey)
	if err != nil {
		t.Fatalf("open tenant one: %v", err)
	}
	src := NewPartitionSource(result.Blob, TenantPartitionKey(tm))
	item := tm.Files["b"]
	body, err := src.Body(item.PartitionID, item.BodyID)
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if !bytes.Equal(body, []byte("v")) {
		t.Fatalf("body mismatch: got %q", body)
	}

	if _, err := OpenTenant(result.Blob, twoKeyID, oneReaderKey); !errors.Is(err, errkind.ErrCrypto) {
		t.Fatalf("expected ErrCrypto opening tenant two's manifest with tenant one's reader key, got %v", err)
	}
	_ = twoReaderKey
}

func TestTenantHolesSkipUnusedPartitions(t *testing.T) {
	fp := mustPartition(t, map[string]string{
		"master/only":   "m",
		"tenants/one/a": "a",
	})
	masterKey, _ := wirecrypto.NewSymmetricKey()
	result, err := Pack(fp, masterKey, nil, 0)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	var oneKeyID int32
	var oneReaderKey []byte
	for _, tk := range result.TenantsKeys {
		if tk.Name == "one" {
			oneKeyID, oneReaderKey = tk.KeyID, tk.ReaderKey
		}
	}
	tm, err := OpenTenant(result.Blob, oneKeyID, oneReaderKey)
	if err != nil {
		t.Fatalf("open tenant: %v", err)
	}
	mm, err := UnsealMaster(result.Blob, masterKey)
	if err != nil {
		t.Fatalf("unseal master: %v", err)
	}
	masterOnlyPartition := mm.Files[blobmodel.MasterPrincipal]["only"].PartitionID
	if len(tm.PartitionKeys[masterOnlyPartition]) != 0 {
		t.Fatalf("expected hole at master-only partition %d, got non-empty key", masterOnlyPartition)
	}
}

func TestBitFlipInXMasterFailsDecryption(t *testing.T) {
	fp := mustPartition(t, map[string]string{"master/a": "abc"})
	masterKey, _ := wirecrypto.NewSymmetricKey()
	result, err := Pack(fp, masterKey, nil, 0)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	result.Blob.XMaster[len(result.Blob.XMaster)-1] ^= 0x01

	if _, err := UnsealMaster(result.Blob, masterKey); !errors.Is(err, errkind.ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
}

func TestBitFlipInPartitionFailsDecryption(t *testing.T) {
	fp := mustPartition(t, map[string]string{"master/a": "abc"})
	masterKey, _ := wirecrypto.NewSymmetricKey()
	result, err := Pack(fp, masterKey, nil, 0)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	mm, err := UnsealMaster(result.Blob, masterKey)
	if err != nil {
		t.Fatalf("unseal master: %v", err)
	}
	result.Blob.XPartitions[0][len(result.Blob.XPartitions[0])-1] ^= 0x01

	src := NewPartitionSource(result.Blob, MasterPartitionKey(mm))
	item := mm.Files[blobmodel.MasterPrincipal]["a"]
	if _, err := src.Body(item.PartitionID, item.BodyID); !errors.Is(err, errkind.ErrCrypto) {
		t.Fatalf("expected ErrCrypto, got %v", err)
	}
}

func TestForgottenTenantGetsNewKeyIDAndOldKeyFails(t *testing.T) {
	fp := mustPartition(t, map[string]string{"tenants/one/a": "x"})
	masterKey, _ := wirecrypto.NewSymmetricKey()

	first, err := Pack(fp, masterKey, nil, 0)
	if err != nil {
		t.Fatalf("pack 1: %v", err)
	}
	oldReaderKey := first.TenantsKeys[0].ReaderKey
	oldKeyID := first.TenantsKeys[0].KeyID

	second, err := Pack(fp, masterKey, nil, first.Blob.MaxID)
	if err != nil {
		t.Fatalf("pack 2: %v", err)
	}
	newKeyID := second.TenantsKeys[0].KeyID
	if newKeyID == oldKeyID {
		t.Fatalf("expected forgotten tenant to get a new key_id, still %d", oldKeyID)
	}
	if second.Blob.MaxID < first.Blob.MaxID {
		t.Fatalf("expected max_id to be monotonically non-decreasing: %d -> %d", first.Blob.MaxID, second.Blob.MaxID)
	}

	if _, err := OpenTenant(second.Blob, newKeyID, oldReaderKey); !errors.Is(err, errkind.ErrCrypto) {
		t.Fatalf("expected old reader key to fail against the new blob, got %v", err)
	}
}

func TestEmptyTreeProducesEmptyBlob(t *testing.T) {
	fp := mustPartition(t, map[string]string{})
	masterKey, _ := wirecrypto.NewSymmetricKey()
	result, err := Pack(fp, masterKey, nil, 0)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(result.Blob.XPartitions) != 0 {
		t.Fatalf("expected no partitions, got %d", len(result.Blob.XPartitions))
	}
	if len(result.Blob.XTenants) != 0 {
		t.Fatalf("expected no tenants, got %d", len(result.Blob.XTenants))
	}
	mm, err := UnsealMaster(result.Blob, masterKey)
	if err != nil {
		t.Fatalf("unseal master: %v", err)
	}
	if len(mm.Files) != 0 {
		t.Fatalf("expected empty files map, got %v", mm.Files)
	}
}
