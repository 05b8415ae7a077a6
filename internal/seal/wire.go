package seal

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/samber/lo"

	"github.com/tez-capital/cryptoblob/internal/blobmodel"
	"github.com/tez-capital/cryptoblob/internal/errkind"
	"github.com/tez-capital/cryptoblob/internal/wire/codec"
	wirecrypto "github.com/tez-capital/cryptoblob/internal/wire/crypto"
)

// encodeFileItem writes FileItem.1: mtime_ns, flags, partition_id,
// body_id.
func encodeFileItem(w *codec.Writer, item blobmodel.FilesPartitionsItem) {
	w.Long(item.Metadata.MtimeNs)
	w.Int(int32(item.Metadata.Flags))
	w.Int(int32(item.PartitionID))
	w.Int(int32(item.BodyID))
}

func decodeFileItem(r *codec.Reader) (blobmodel.FilesPartitionsItem, error) {
	mtimeNs, err := r.Long()
	if err != nil {
		return blobmodel.FilesPartitionsItem{}, fmt.Errorf("%w: FileItem.mtime_ns: %v", errkind.ErrSchema, err)
	}
	flags, err := r.Int()
	if err != nil {
		return blobmodel.FilesPartitionsItem{}, fmt.Errorf("%w: FileItem.flags: %v", errkind.ErrSchema, err)
	}
	partitionID, err := r.Int()
	if err != nil {
		return blobmodel.FilesPartitionsItem{}, fmt.Errorf("%w: FileItem.partition_id: %v", errkind.ErrSchema, err)
	}
	bodyID, err := r.Int()
	if err != nil {
		return blobmodel.FilesPartitionsItem{}, fmt.Errorf("%w: FileItem.body_id: %v", errkind.ErrSchema, err)
	}
	return blobmodel.FilesPartitionsItem{
		Metadata:    blobmodel.FileMetadata{MtimeNs: mtimeNs, Flags: blobmodel.Flags(flags)},
		PartitionID: blobmodel.PartitionID(partitionID),
		BodyID:      blobmodel.BodyID(bodyID),
	}, nil
}

// encodeTenantKeys writes TenantKeys.1.
func encodeTenantKeys(w *codec.Writer, tk blobmodel.TenantKeys) {
	w.String(tk.Name)
	w.Int(tk.KeyID)
	w.BytesField(tk.WriterKey)
	w.BytesField(tk.ReaderKey)
}

func decodeTenantKeys(r *codec.Reader) (blobmodel.TenantKeys, error) {
	name, err := r.String()
	if err != nil {
		return blobmodel.TenantKeys{}, fmt.Errorf("%w: TenantKeys.tenant_name: %v", errkind.ErrSchema, err)
	}
	keyID, err := r.Int()
	if err != nil {
		return blobmodel.TenantKeys{}, fmt.Errorf("%w: TenantKeys.key_id: %v", errkind.ErrSchema, err)
	}
	writerKey, err := r.BytesField()
	if err != nil {
		return blobmodel.TenantKeys{}, fmt.Errorf("%w: TenantKeys.writer_key: %v", errkind.ErrSchema, err)
	}
	readerKey, err := r.BytesField()
	if err != nil {
		return blobmodel.TenantKeys{}, fmt.Errorf("%w: TenantKeys.reader_key: %v", errkind.ErrSchema, err)
	}
	return blobmodel.TenantKeys{Name: name, KeyID: keyID, WriterKey: writerKey, ReaderKey: readerKey}, nil
}

// encodePartition writes partition.1 = array<bytes>.
func encodePartition(bodies [][]byte) []byte {
	w := codec.NewWriter()
	w.BlockCount(len(bodies))
	for _, b := range bodies {
		w.BytesField(b)
	}
	w.EndBlocks()
	return w.Bytes()
}

func decodePartition(buf []byte) ([][]byte, error) {
	r := codec.NewReader(buf)
	n, err := r.BlockCount()
	if err != nil {
		return nil, fmt.Errorf("%w: partition block count: %v", errkind.ErrSchema, err)
	}
	bodies := make([][]byte, 0, n)
	for i := int64(0); i < n; i++ {
		b, err := r.BytesField()
		if err != nil {
			return nil, fmt.Errorf("%w: partition body %d: %v", errkind.ErrSchema, i, err)
		}
		bodies = append(bodies, b)
	}
	if _, err := r.BlockCount(); err != nil {
		return nil, fmt.Errorf("%w: partition terminating block: %v", errkind.ErrSchema, err)
	}
	return bodies, nil
}

func encodeFilesMap(w *codec.Writer, files map[string]blobmodel.FilesPartitionsItem) {
	paths := lo.Keys(files)
	sort.Strings(paths)
	w.BlockCount(len(paths))
	for _, path := range paths {
		w.String(path)
		encodeFileItem(w, files[path])
	}
	w.EndBlocks()
}

func decodeFilesMap(r *codec.Reader) (map[string]blobmodel.FilesPartitionsItem, error) {
	n, err := r.BlockCount()
	if err != nil {
		return nil, fmt.Errorf("%w: files map block count: %v", errkind.ErrSchema, err)
	}
	out := make(map[string]blobmodel.FilesPartitionsItem, n)
	for i := int64(0); i < n; i++ {
		path, err := r.String()
		if err != nil {
			return nil, fmt.Errorf("%w: files map key %d: %v", errkind.ErrSchema, i, err)
		}
		item, err := decodeFileItem(r)
		if err != nil {
			return nil, err
		}
		out[path] = item
	}
	if _, err := r.BlockCount(); err != nil {
		return nil, fmt.Errorf("%w: files map terminating block: %v", errkind.ErrSchema, err)
	}
	return out, nil
}

// encodeMaster writes master.1.
func encodeMaster(mm *blobmodel.MasterManifest) []byte {
	w := codec.NewWriter()

	w.BlockCount(len(mm.PartitionKeys))
	for _, k := range mm.PartitionKeys {
		w.BytesField(k[:])
	}
	w.EndBlocks()

	principals := lo.Keys(mm.Files)
	sort.Strings(principals)
	w.BlockCount(len(principals))
	for _, principal := range principals {
		w.String(principal)
		encodeFilesMap(w, mm.Files[principal])
	}
	w.EndBlocks()

	w.BlockCount(len(mm.TenantsKeys))
	for _, tk := range mm.TenantsKeys {
		encodeTenantKeys(w, tk)
	}
	w.EndBlocks()

	return w.Bytes()
}

// readBlocksEnd consumes the zero block that closes a non-empty array
// or map of n items. An empty one is encoded as that single zero block,
// which the opening BlockCount has already read.
func readBlocksEnd(r *codec.Reader, n int64) error {
	if n == 0 {
		return nil
	}
	_, err := r.BlockCount()
	return err
}

func decodeMaster(buf []byte) (*blobmodel.MasterManifest, error) {
	r := codec.NewReader(buf)

	nKeys, err := r.BlockCount()
	if err != nil {
		return nil, fmt.Errorf("%w: master.partition_keys block count: %v", errkind.ErrSchema, err)
	}
	partitionKeys := make([]wirecrypto.SymmetricKey, 0, nKeys)
	for i := int64(0); i < nKeys; i++ {
		raw, err := r.BytesField()
		if err != nil {
			return nil, fmt.Errorf("%w: master.partition_keys[%d]: %v", errkind.ErrSchema, i, err)
		}
		partitionKeys = append(partitionKeys, wirecrypto.KeyFromBytes(raw))
	}
	if err := readBlocksEnd(r, nKeys); err != nil {
		return nil, fmt.Errorf("%w: master.partition_keys terminating block: %v", errkind.ErrSchema, err)
	}

	nPrincipals, err := r.BlockCount()
	if err != nil {
		return nil, fmt.Errorf("%w: master.files block count: %v", errkind.ErrSchema, err)
	}
	files := make(map[string]map[string]blobmodel.FilesPartitionsItem, nPrincipals)
	for i := int64(0); i < nPrincipals; i++ {
		principal, err := r.String()
		if err != nil {
			return nil, fmt.Errorf("%w: master.files key %d: %v", errkind.ErrSchema, i, err)
		}
		fm, err := decodeFilesMap(r)
		if err != nil {
			return nil, err
		}
		files[principal] = fm
	}
	if err := readBlocksEnd(r, nPrincipals); err != nil {
		return nil, fmt.Errorf("%w: master.files terminating block: %v", errkind.ErrSchema, err)
	}

	nTenants, err := r.BlockCount()
	if err != nil {
		return nil, fmt.Errorf("%w: master.tenants_keys block count: %v", errkind.ErrSchema, err)
	}
	tenantsKeys := make([]blobmodel.TenantKeys, 0, nTenants)
	for i := int64(0); i < nTenants; i++ {
		tk, err := decodeTenantKeys(r)
		if err != nil {
			return nil, err
		}
		tenantsKeys = append(tenantsKeys, tk)
	}
	if err := readBlocksEnd(r, nTenants); err != nil {
		return nil, fmt.Errorf("%w: master.tenants_keys terminating block: %v", errkind.ErrSchema, err)
	}

	return &blobmodel.MasterManifest{PartitionKeys: partitionKeys, Files: files, TenantsKeys: tenantsKeys}, nil
}

// encodeTenant writes tenant.1: partition_keys holds empty bytes at
// hole positions.
func encodeTenant(tm *blobmodel.TenantManifest) []byte {
	w := codec.NewWriter()

	w.BlockCount(len(tm.PartitionKeys))
	for _, k := range tm.PartitionKeys {
		w.BytesField(k)
	}
	w.EndBlocks()

	encodeFilesMap(w, tm.Files)

	return w.Bytes()
}

func decodeTenant(buf []byte) (*blobmodel.TenantManifest, error) {
	r := codec.NewReader(buf)

	n, err := r.BlockCount()
	if err != nil {
		return nil, fmt.Errorf("%w: tenant.partition_keys block count: %v", errkind.ErrSchema, err)
	}
	partitionKeys := make([][]byte, 0, n)
	for i := int64(0); i < n; i++ {
		raw, err := r.BytesField()
		if err != nil {
			return nil, fmt.Errorf("%w: tenant.partition_keys[%d]: %v", errkind.ErrSchema, i, err)
		}
		partitionKeys = append(partitionKeys, raw)
	}
	if _, err := r.BlockCount(); err != nil {
		return nil, fmt.Errorf("%w: tenant.partition_keys terminating block: %v", errkind.ErrSchema, err)
	}

	files, err := decodeFilesMap(r)
	if err != nil {
		return nil, err
	}

	return &blobmodel.TenantManifest{PartitionKeys: partitionKeys, Files: files}, nil
}

// encodeBlobRecord writes blob.1.
func encodeBlobRecord(cb *blobmodel.CryptoBlob) []byte {
	w := codec.NewWriter()
	w.Long(int64(cb.MaxID))
	w.BytesField(cb.XMaster)

	w.BlockCount(len(cb.XPartitions))
	for _, p := range cb.XPartitions {
		w.BytesField(p)
	}
	w.EndBlocks()

	keyIDs := lo.Keys(cb.XTenants)
	sort.Slice(keyIDs, func(i, j int) bool { return keyIDs[i] < keyIDs[j] })
	w.BlockCount(len(keyIDs))
	for _, id := range keyIDs {
		w.String(strconv.FormatInt(int64(id), 10))
		w.BytesField(cb.XTenants[id])
	}
	w.EndBlocks()

	return w.Bytes()
}

func decodeBlobRecord(buf []byte) (*blobmodel.CryptoBlob, error) {
	r := codec.NewReader(buf)

	maxID, err := r.Long()
	if err != nil {
		return nil, fmt.Errorf("%w: blob.max_id: %v", errkind.ErrSchema, err)
	}
	xmaster, err := r.BytesField()
	if err != nil {
		return nil, fmt.Errorf("%w: blob.master: %v", errkind.ErrSchema, err)
	}

	nPartitions, err := r.BlockCount()
	if err != nil {
		return nil, fmt.Errorf("%w: blob.partitions block count: %v", errkind.ErrSchema, err)
	}
	xpartitions := make([][]byte, 0, nPartitions)
	for i := int64(0); i < nPartitions; i++ {
		p, err := r.BytesField()
		if err != nil {
			return nil, fmt.Errorf("%w: blob.partitions[%d]: %v", errkind.ErrSchema, i, err)
		}
		xpartitions = append(xpartitions, p)
	}
	if err := readBlocksEnd(r, nPartitions); err != nil {
		return nil, fmt.Errorf("%w: blob.partitions terminating block: %v", errkind.ErrSchema, err)
	}

	nTenants, err := r.BlockCount()
	if err != nil {
		return nil, fmt.Errorf("%w: blob.tenants block count: %v", errkind.ErrSchema, err)
	}
	xtenants := make(map[int32][]byte, nTenants)
	for i := int64(0); i < nTenants; i++ {
		keyIDStr, err := r.String()
		if err != nil {
			return nil, fmt.Errorf("%w: blob.tenants key %d: %v", errkind.ErrSchema, i, err)
		}
		keyID, err := strconv.ParseInt(keyIDStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: blob.tenants key %q not decimal: %v", errkind.ErrSchema, keyIDStr, err)
		}
		v, err := r.BytesField()
		if err != nil {
			return nil, fmt.Errorf("%w: blob.tenants[%s]: %v", errkind.ErrSchema, keyIDStr, err)
		}
		xtenants[int32(keyID)] = v
	}
	if err := readBlocksEnd(r, nTenants); err != nil {
		return nil, fmt.Errorf("%w: blob.tenants terminating block: %v", errkind.ErrSchema, err)
	}

	return &blobmodel.CryptoBlob{MaxID: int32(maxID), XMaster: xmaster, XPartitions: xpartitions, XTenants: xtenants}, nil
}
