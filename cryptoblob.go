// Package cryptoblob is the public façade over the packing pipeline:
// pack a directory tree into an encrypted, tenant-scoped blob and
// unpack it again.
package cryptoblob

import (
	"fmt"

	"github.com/tez-capital/cryptoblob/internal/blobmodel"
	"github.com/tez-capital/cryptoblob/internal/collector"
	"github.com/tez-capital/cryptoblob/internal/partition"
	"github.com/tez-capital/cryptoblob/internal/seal"
	wirecrypto "github.com/tez-capital/cryptoblob/internal/wire/crypto"
	"github.com/tez-capital/cryptoblob/internal/writeout"
)

// Re-exported types so callers never need to import internal/blobmodel
// or internal/wire/crypto directly.
type (
	TenantKeys     = blobmodel.TenantKeys
	SymmetricKey   = wirecrypto.SymmetricKey
	CryptoBlob     = blobmodel.CryptoBlob
	MasterManifest = blobmodel.MasterManifest
	TenantManifest = blobmodel.TenantManifest
)

// NewSymmetricKey draws a fresh master key.
func NewSymmetricKey() (SymmetricKey, error) { return wirecrypto.NewSymmetricKey() }

// PackResult mirrors seal.Result, re-exported at the facade boundary.
type PackResult struct {
	Blob        *CryptoBlob
	TenantsKeys []TenantKeys
}

// Pack runs the full pack direction: collect srcDir, partition it by
// principal, mint any missing tenant keys, and seal
// everything into a CryptoBlob. existingTenantsKeys identifies the
// tenants the caller wants identity continuity for; maxID is the
// blob-wide counter to continue minting new key_ids from.
func Pack(srcDir string, masterKey SymmetricKey, existingTenantsKeys []TenantKeys, maxID int32) (*PackResult, error) {
	fc, err := collector.Collect(srcDir)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", srcDir, err)
	}
	fp, err := partition.Partition(fc)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", srcDir, err)
	}
	result, err := seal.Pack(fp, masterKey, existingTenantsKeys, maxID)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", srcDir, err)
	}
	return &PackResult{Blob: result.Blob, TenantsKeys: result.TenantsKeys}, nil
}

// Dump serialises a CryptoBlob to its outer wire form.
func Dump(cb *CryptoBlob) []byte { return seal.Dump(cb) }

// Load parses the outer wire form produced by Dump.
func Load(buf []byte) (*CryptoBlob, error) { return seal.Load(buf) }

// UnsealMaster decrypts the master manifest.
func UnsealMaster(cb *CryptoBlob, masterKey SymmetricKey) (*MasterManifest, error) {
	return seal.UnsealMaster(cb, masterKey)
}

// GetTenantsKeys returns the tenant identity triples a decrypted
// master manifest carries.
func GetTenantsKeys(mm *MasterManifest) []TenantKeys { return seal.GetTenantsKeys(mm) }

// WriteoutMaster reconstructs the full tree under dest from a decrypted
// master manifest.
func WriteoutMaster(dest string, cb *CryptoBlob, mm *MasterManifest) error {
	src := seal.NewPartitionSource(cb, seal.MasterPartitionKey(mm))
	return writeout.Master(dest, mm.Files, src)
}

// OpenTenant decrypts a tenant's manifest with its reader key.
func OpenTenant(cb *CryptoBlob, keyID int32, readerKey []byte) (*TenantManifest, error) {
	return seal.OpenTenant(cb, keyID, readerKey)
}

// WriteoutTenant reconstructs a tenant's own subtree under dest, with
// no principal prefix.
func WriteoutTenant(dest string, cb *CryptoBlob, tm *TenantManifest) error {
	src := seal.NewPartitionSource(cb, seal.TenantPartitionKey(tm))
	return writeout.Tenant(dest, tm.Files, src)
}
