// Package storage defines the two collaborator contracts the core
// blob pipeline is built around but never implements itself: a
// storage backend for the blob object, and a lock backend for
// coordinating concurrent modify() calls against it.
package storage

import "context"

// Modifier computes the next version of a stored object from its
// current bytes. A nil input means the object does not yet exist. A
// nil result deletes the object; a result equal to the input is a
// no-op write.
type Modifier func(current []byte) (next []byte, err error)

// Backend is the storage collaborator the blob pipeline is built
// around. Implementations must make Modify atomic with respect to
// other Modify/Load calls
// against the same loc to whatever degree their medium allows —
// localfile via rename, objectstore via conditional PUT.
type Backend interface {
	Load(ctx context.Context, loc string) ([]byte, error)
	Modify(ctx context.Context, loc string, fn Modifier) error
}

// Lock is a held advisory lock; Close releases it.
type Lock interface {
	Close() error
}

// LockBackend is the lock collaborator guarding concurrent Modify
// calls.
type LockBackend interface {
	// Acquire blocks until the named lock is held or timeout elapses,
	// in which case it fails with errkind.ErrTimeout.
	Acquire(ctx context.Context, loc string) (Lock, error)
}
