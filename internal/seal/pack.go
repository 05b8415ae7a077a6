// Package seal implements the sealer and unsealer: turning a
// partitioned tree into an encrypted CryptoBlob and back.
package seal

import (
	"fmt"
	"sort"

	"github.com/tez-capital/cryptoblob/internal/blobmodel"
	"github.com/tez-capital/cryptoblob/internal/wire/codec"
	wirecrypto "github.com/tez-capital/cryptoblob/internal/wire/crypto"
)

// Result is the outcome of a Pack call: the encrypted container plus
// the full tenant identity table (existing tenants retained verbatim,
// newly seen tenants minted fresh) and the blob's updated max_id.
type Result struct {
	Blob        *blobmodel.CryptoBlob
	TenantsKeys []blobmodel.TenantKeys
}

// Pack implements the sealer. existingTenantsKeys supplies the tenant
// identities the caller wants to retain continuity for; any
// tenant principal present in fp.Files but absent from
// existingTenantsKeys is minted a fresh key_id and keypair, starting
// from maxID+1.
func Pack(fp *blobmodel.FilesPartitions, masterKey wirecrypto.SymmetricKey, existingTenantsKeys []blobmodel.TenantKeys, maxID int32) (*Result, error) {
	existingByName := make(map[string]blobmodel.TenantKeys, len(existingTenantsKeys))
	for _, tk := range existingTenantsKeys {
		existingByName[tk.Name] = tk
	}

	tenantNames := make([]string, 0, len(fp.Files))
	for principal := range fp.Files {
		if principal == blobmodel.MasterPrincipal {
			continue
		}
		tenantNames = append(tenantNames, principal)
	}
	sort.Strings(tenantNames)

	tenantsKeys := make([]blobmodel.TenantKeys, 0, len(tenantNames))
	for _, name := range tenantNames {
		if existing, ok := existingByName[name]; ok {
			tenantsKeys = append(tenantsKeys, existing)
			continue
		}
		maxID++
		writerKey, readerKey, err := wirecrypto.NewAsymmetricKeypair()
		if err != nil {
			return nil, fmt.Errorf("pack: mint keypair for tenant %q: %w", name, err)
		}
		tenantsKeys = append(tenantsKeys, blobmodel.TenantKeys{
			Name: name, KeyID: maxID, WriterKey: writerKey, ReaderKey: readerKey,
		})
	}

	partitionKeys := make([]wirecrypto.SymmetricKey, len(fp.Partitions))
	for i := range partitionKeys {
		k, err := wirecrypto.NewSymmetricKey()
		if err != nil {
			return nil, fmt.Errorf("pack: draw partition key %d: %w", i, err)
		}
		partitionKeys[i] = k
	}

	xpartitions := make([][]byte, len(fp.Partitions))
	for i, bodies := range fp.Partitions {
		sealed, err := sealRecord(encodePartition(bodies), partitionKeys[i])
		if err != nil {
			return nil, fmt.Errorf("pack: seal partition %d: %w", i, err)
		}
		xpartitions[i] = sealed
	}

	xmaster, err := sealRecord(encodeMaster(&blobmodel.MasterManifest{
		PartitionKeys: partitionKeys,
		Files:         fp.Files,
		TenantsKeys:   tenantsKeys,
	}), masterKey)
	if err != nil {
		return nil, fmt.Errorf("pack: seal master manifest: %w", err)
	}

	xtenants := make(map[int32][]byte, len(tenantsKeys))
	for _, tk := range tenantsKeys {
		used := fp.UsedPartitions[tk.Name]
		holed := make([][]byte, len(partitionKeys))
		for i, k := range partitionKeys {
			if _, ok := used[blobmodel.PartitionID(i)]; ok {
				kc := k
				holed[i] = kc[:]
			}
		}
		record := encodeTenant(&blobmodel.TenantManifest{PartitionKeys: holed, Files: fp.Files[tk.Name]})
		compressed, err := codec.Compress(record)
		if err != nil {
			return nil, fmt.Errorf("pack: compress tenant %q manifest: %w", tk.Name, err)
		}
		sealed, err := wirecrypto.SealToTenant(compressed, tk.WriterKey)
		if err != nil {
			return nil, fmt.Errorf("pack: seal tenant %q manifest: %w", tk.Name, err)
		}
		xtenants[tk.KeyID] = sealed
	}

	return &Result{
		Blob: &blobmodel.CryptoBlob{
			Version:     1,
			MaxID:       maxID,
			XPartitions: xpartitions,
			XMaster:     xmaster,
			XTenants:    xtenants,
		},
		TenantsKeys: tenantsKeys,
	}, nil
}

// sealRecord applies the strict encode -> compress -> encrypt
// wrapping order for partition/master/tenant records. encode has
// already happened by the time this is called; this just compresses
// and seals.
func sealRecord(encoded []byte, key wirecrypto.SymmetricKey) ([]byte, error) {
	compressed, err := codec.Compress(encoded)
	if err != nil {
		return nil, fmt.Errorf("compress record: %w", err)
	}
	return wirecrypto.Seal(compressed, key)
}
