package seal

import (
	"fmt"

	"github.com/tez-capital/cryptoblob/internal/blobmodel"
	"github.com/tez-capital/cryptoblob/internal/errkind"
	"github.com/tez-capital/cryptoblob/internal/wire/codec"
	wirecrypto "github.com/tez-capital/cryptoblob/internal/wire/crypto"
)

// UnsealMaster decrypts and decodes xmaster with the master key. It
// does not touch any partition; callers fetch partition bodies on
// demand through a PartitionSource.
func UnsealMaster(cb *blobmodel.CryptoBlob, masterKey wirecrypto.SymmetricKey) (*blobmodel.MasterManifest, error) {
	record, err := openRecord(cb.XMaster, masterKey)
	if err != nil {
		return nil, fmt.Errorf("unseal master: %w", err)
	}
	return decodeMaster(record)
}

// OpenTenant opens xtenants[keyID] with a tenant's reader key. keyID
// must match the entry the master manifest issued for that tenant.
func OpenTenant(cb *blobmodel.CryptoBlob, keyID int32, readerKey []byte) (*blobmodel.TenantManifest, error) {
	sealed, ok := cb.XTenants[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: no tenant manifest for key_id %d", errkind.ErrCrypto, keyID)
	}
	compressed, err := wirecrypto.OpenFromMaster(sealed, readerKey)
	if err != nil {
		return nil, fmt.Errorf("open tenant %d: %w", keyID, err)
	}
	record, err := codec.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("open tenant %d: decompress: %w", keyID, err)
	}
	return decodeTenant(record)
}

// GetTenantsKeys returns the tenant identity triples recorded in a
// decrypted master manifest.
func GetTenantsKeys(mm *blobmodel.MasterManifest) []blobmodel.TenantKeys {
	return mm.TenantsKeys
}

// openRecord reverses sealRecord: decrypt then decompress.
func openRecord(ciphertext []byte, key wirecrypto.SymmetricKey) ([]byte, error) {
	compressed, err := wirecrypto.Open(ciphertext, key)
	if err != nil {
		return nil, err
	}
	return codec.Decompress(compressed)
}

// PartitionSource lazily decrypts and decodes partitions on demand,
// caching each partition's body list the first time it is requested.
// It implements writeout.BodySource.
type PartitionSource struct {
	blob   *blobmodel.CryptoBlob
	keyFor func(blobmodel.PartitionID) (wirecrypto.SymmetricKey, error)
	cache  map[blobmodel.PartitionID][][]byte
}

// NewPartitionSource builds a PartitionSource against blob, resolving
// each partition's symmetric key through keyFor.
func NewPartitionSource(blob *blobmodel.CryptoBlob, keyFor func(blobmodel.PartitionID) (wirecrypto.SymmetricKey, error)) *PartitionSource {
	return &PartitionSource{blob: blob, keyFor: keyFor, cache: make(map[blobmodel.PartitionID][][]byte)}
}

// MasterPartitionKey returns a keyFor resolver reading from a decoded
// master manifest's positional partition_keys list.
func MasterPartitionKey(mm *blobmodel.MasterManifest) func(blobmodel.PartitionID) (wirecrypto.SymmetricKey, error) {
	return func(pid blobmodel.PartitionID) (wirecrypto.SymmetricKey, error) {
		if int(pid) < 0 || int(pid) >= len(mm.PartitionKeys) {
			return wirecrypto.SymmetricKey{}, fmt.Errorf("%w: partition %d out of range", errkind.ErrSchema, pid)
		}
		return mm.PartitionKeys[pid], nil
	}
}

// TenantPartitionKey returns a keyFor resolver reading from a decoded
// tenant manifest's positional, hole-bearing partition_keys list.
func TenantPartitionKey(tm *blobmodel.TenantManifest) func(blobmodel.PartitionID) (wirecrypto.SymmetricKey, error) {
	return func(pid blobmodel.PartitionID) (wirecrypto.SymmetricKey, error) {
		if int(pid) < 0 || int(pid) >= len(tm.PartitionKeys) {
			return wirecrypto.SymmetricKey{}, fmt.Errorf("%w: partition %d out of range", errkind.ErrSchema, pid)
		}
		raw := tm.PartitionKeys[pid]
		if len(raw) == 0 {
			return wirecrypto.SymmetricKey{}, fmt.Errorf("%w: partition %d is not in this tenant's used_partitions", errkind.ErrCrypto, pid)
		}
		return wirecrypto.KeyFromBytes(raw), nil
	}
}

// Body implements writeout.BodySource.
func (s *PartitionSource) Body(partitionID blobmodel.PartitionID, bodyID blobmodel.BodyID) ([]byte, error) {
	bodies, ok := s.cache[partitionID]
	if !ok {
		if int(partitionID) < 0 || int(partitionID) >= len(s.blob.XPartitions) {
			return nil, fmt.Errorf("%w: partition %d out of range", errkind.ErrSchema, partitionID)
		}
		key, err := s.keyFor(partitionID)
		if err != nil {
			return nil, err
		}
		record, err := openRecord(s.blob.XPartitions[partitionID], key)
		if err != nil {
			return nil, fmt.Errorf("open partition %d: %w", partitionID, err)
		}
		bodies, err = decodePartition(record)
		if err != nil {
			return nil, err
		}
		s.cache[partitionID] = bodies
	}
	if int(bodyID) < 0 || int(bodyID) >= len(bodies) {
		return nil, fmt.Errorf("%w: body %d out of range in partition %d", errkind.ErrSchema, bodyID, partitionID)
	}
	return bodies[bodyID], nil
}

// Dump serialises a CryptoBlob to its outer wire form:
// blob_header(version) || blob.<version>.
func Dump(cb *blobmodel.CryptoBlob) []byte {
	header := codec.NewWriter()
	header.Int(cb.Version)
	return append(header.Bytes(), encodeBlobRecord(cb)...)
}

// Load parses the outer wire form produced by Dump.
func Load(buf []byte) (*blobmodel.CryptoBlob, error) {
	r := codec.NewReader(buf)
	version, err := r.Int()
	if err != nil {
		return nil, fmt.Errorf("%w: blob_header.version: %v", errkind.ErrSchema, err)
	}
	if version != 1 {
		return nil, fmt.Errorf("%w: blob version %d", errkind.ErrUnsupportedVersion, version)
	}
	cb, err := decodeBlobRecord(r.Rest())
	if err != nil {
		return nil, err
	}
	cb.Version = version
	return cb, nil
}
