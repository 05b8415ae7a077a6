// Package schema tracks the record names and versions that make up the
// container format. The wire encoding itself is schemaless (package
// codec writes and reads fields positionally, the way fastavro's
// schemaless_writer/reader do against a schema supplied out of band)
// — this package is that out-of-band contract: it pins which (name,
// version) pairs a given binary understands.
package schema

import "fmt"

// Name identifies one of the fixed record shapes making up a blob.
type Name string

const (
	BlobHeader Name = "blob_header"
	Blob       Name = "blob"
	Partition  Name = "partition"
	Master     Name = "master"
	Tenant     Name = "tenant"
	FileItem   Name = "FileItem"
	TenantKeys Name = "TenantKeys"
)

// supportedVersions lists every (name, version) this binary can decode.
// A record version is retired from here only when nothing in the field
// writes it anymore; until then old blobs keep reading.
var supportedVersions = map[Name][]int{
	BlobHeader: {1},
	Blob:       {1},
	Partition:  {1},
	Master:     {1},
	Tenant:     {1},
	FileItem:   {1},
	TenantKeys: {1},
}

// CurrentVersion is the version newly written blobs use for each
// record. Bump here (and add the old version to supportedVersions)
// when a record shape changes.
var CurrentVersion = map[Name]int{
	BlobHeader: 1,
	Blob:       1,
	Partition:  1,
	Master:     1,
	Tenant:     1,
	FileItem:   1,
	TenantKeys: 1,
}

// Check reports whether this binary knows how to decode the given
// record version, returning a plain error that lists the supported
// versions for anything it doesn't. The error does not wrap
// errkind.ErrUnsupportedVersion; callers wrap it with errkind at the
// call site to keep this package free of that import cycle risk.
func Check(name Name, version int) error {
	for _, v := range supportedVersions[name] {
		if v == version {
			return nil
		}
	}
	return fmt.Errorf("schema: unsupported %s version %d (supported: %v)", name, version, supportedVersions[name])
}
