// Package blobmodel holds the in-memory data model: file entries,
// deduplicated bodies, partitions, tenant identity triples,
// and the master/tenant manifests and outer container they compose
// into. Nothing in this package touches the wire encoding or crypto
// directly; it is the shared vocabulary the collector, partitioner,
// sealer, unsealer, and writeout packages pass between each other.
package blobmodel

import wirecrypto "github.com/tez-capital/cryptoblob/internal/wire/crypto"

// Flags is the small per-entry bitset.
type Flags int32

const (
	// FlagSymlink marks a file entry as a symbolic link; its body is
	// the link target (UTF-8), not file contents.
	FlagSymlink Flags = 1 << iota
	// FlagSymlinkAbs marks that the stored link target was absolute
	// at collection time and has since been normalised relative to
	// the principal root.
	FlagSymlinkAbs
)

// BodyID indexes into a partition's or collection's body table.
type BodyID int32

// PartitionID indexes into a CryptoBlob's partitions list.
type PartitionID int32

// MasterPrincipal is the principal name used for paths under master/.
const MasterPrincipal = ""

// FileMetadata is the per-entry metadata carried alongside a body
// reference: modification time and the symlink flag bits.
type FileMetadata struct {
	MtimeNs int64
	Flags   Flags
}

func (m FileMetadata) IsSymlink() bool    { return m.Flags&FlagSymlink != 0 }
func (m FileMetadata) IsSymlinkAbs() bool { return m.Flags&FlagSymlinkAbs != 0 }

// FilesCollectionItem is a file's metadata plus a reference into the
// collection's deduplicated body table, as produced by the collector.
type FilesCollectionItem struct {
	Metadata FileMetadata
	BodyID   BodyID
}

// FilesCollection is the collector's output: a flat, source-relative
// path-to-item map plus the deduplicated body table it references.
type FilesCollection struct {
	Bodies [][]byte
	Files  map[string]FilesCollectionItem

	bodyIndex map[string]BodyID
}

// NewFilesCollection returns an empty collection ready for Intern/Set.
func NewFilesCollection() *FilesCollection {
	return &FilesCollection{
		Files:     make(map[string]FilesCollectionItem),
		bodyIndex: make(map[string]BodyID),
	}
}

// Intern returns the BodyID for body, reusing an existing entry if an
// identical byte string was already interned, so identical bytes
// appear exactly once.
func (fc *FilesCollection) Intern(body []byte) BodyID {
	key := string(body)
	if id, ok := fc.bodyIndex[key]; ok {
		return id
	}
	id := BodyID(len(fc.Bodies))
	fc.Bodies = append(fc.Bodies, body)
	fc.bodyIndex[key] = id
	return id
}

// FilesPartitionsItem is a file's metadata plus a reference into a
// specific partition's body list, as produced by the partitioner.
type FilesPartitionsItem struct {
	Metadata    FileMetadata
	PartitionID PartitionID
	BodyID      BodyID
}

// FilesPartitions is the partitioner's output: the partition table
// itself, the per-principal file maps, and the per-principal set of
// referenced partition ids.
type FilesPartitions struct {
	// Partitions[i] is the ordered body list of partition i.
	Partitions [][][]byte
	// Files[principal][path] is that file's partitioned location.
	Files map[string]map[string]FilesPartitionsItem
	// UsedPartitions[principal] is the set of partition ids any of
	// that principal's files reference.
	UsedPartitions map[string]map[PartitionID]struct{}
}

// TenantKeys is the stable per-tenant identity triple.
type TenantKeys struct {
	Name      string
	KeyID     int32
	WriterKey []byte
	ReaderKey []byte
}

// MasterManifest is the decrypted record sealed under the master key.
type MasterManifest struct {
	PartitionKeys []wirecrypto.SymmetricKey
	// Files[principal][path] mirrors FilesPartitions.Files.
	Files       map[string]map[string]FilesPartitionsItem
	TenantsKeys []TenantKeys
}

// TenantManifest is the decrypted record sealed per-tenant
// asymmetrically. Holes in PartitionKeys
// (partitions the tenant is not entitled to) are represented as a
// nil/empty slice at that position.
type TenantManifest struct {
	PartitionKeys [][]byte
	Files         map[string]FilesPartitionsItem
}

// CryptoBlob is the persisted top-level container, holding
// still-encrypted bytes: decrypting any part requires the matching key
// and goes through package seal.
type CryptoBlob struct {
	Version     int32
	MaxID       int32
	XPartitions [][]byte
	XMaster     []byte
	XTenants    map[int32][]byte
}

// PrincipalPrefix returns the destination-relative prefix a
// principal's files are written under: "master/" for the master
// principal, "tenants/<name>/" otherwise.
func PrincipalPrefix(principal string) string {
	if principal == MasterPrincipal {
		return "master/"
	}
	return "tenants/" + principal + "/"
}
