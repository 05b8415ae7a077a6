// Package errkind defines the transport-neutral error kinds raised by the
// cryptoblob core. Each kind is a sentinel error, wrapped with
// fmt.Errorf("%w: ...") at the raise site so callers can still errors.Is
// against the sentinel.
package errkind

import "errors"

var (
	// ErrCrypto signals a decryption, authentication, or signature
	// verification failure. Never recoverable.
	ErrCrypto = errors.New("cryptoblob: crypto error")

	// ErrBadLayout signals a source tree entry whose path is neither
	// under "master/" nor "tenants/<name>/".
	ErrBadLayout = errors.New("cryptoblob: bad layout")

	// ErrOutOfTree signals an absolute symlink resolving outside its
	// principal root, or a relative link escaping via "..".
	ErrOutOfTree = errors.New("cryptoblob: out of tree")

	// ErrUnsupportedNode signals a source path that is neither file,
	// directory, nor symlink.
	ErrUnsupportedNode = errors.New("cryptoblob: unsupported node")

	// ErrUnsupportedVersion signals a blob version unknown to this
	// implementation.
	ErrUnsupportedVersion = errors.New("cryptoblob: unsupported version")

	// ErrSchema signals a decoded record that does not conform to its
	// schema.
	ErrSchema = errors.New("cryptoblob: schema error")

	// ErrBackend is raised by external storage/lock collaborators and
	// propagated unchanged by the core.
	ErrBackend = errors.New("cryptoblob: backend error")

	// ErrTimeout is raised by lock backends when acquisition exceeds
	// the caller's timeout.
	ErrTimeout = errors.New("cryptoblob: lock timeout")
)

// Code is a stable short identifier for an error kind, suitable for
// machine-readable output such as JSON.
type Code string

const (
	CodeCrypto             Code = "CRYPTO_ERROR"
	CodeBadLayout          Code = "BAD_LAYOUT"
	CodeOutOfTree          Code = "OUT_OF_TREE"
	CodeUnsupportedNode    Code = "UNSUPPORTED_NODE"
	CodeUnsupportedVersion Code = "UNSUPPORTED_VERSION"
	CodeSchema             Code = "SCHEMA_ERROR"
	CodeBackend            Code = "BACKEND_ERROR"
	CodeTimeout            Code = "TIMEOUT"
	CodeUnknown            Code = "UNKNOWN"
)

// CodeOf maps an error produced by this module to its stable code by
// walking the errors.Is chain. Errors not originating here map to
// CodeUnknown.
func CodeOf(err error) Code {
	switch {
	case errors.Is(err, ErrCrypto):
		return CodeCrypto
	case errors.Is(err, ErrBadLayout):
		return CodeBadLayout
	case errors.Is(err, ErrOutOfTree):
		return CodeOutOfTree
	case errors.Is(err, ErrUnsupportedNode):
		return CodeUnsupportedNode
	case errors.Is(err, ErrUnsupportedVersion):
		return CodeUnsupportedVersion
	case errors.Is(err, ErrSchema):
		return CodeSchema
	case errors.Is(err, ErrBackend):
		return CodeBackend
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	default:
		return CodeUnknown
	}
}
