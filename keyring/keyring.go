package keyring

import (
	"fmt"
	"log/slog"
	"sync"
)

// Unlocked is a tenant reader key held in memory after a successful
// Unlock call. Callers are expected to MemoryWipe(ReaderKey) once
// done with it.
type Unlocked struct {
	Name      string
	KeyID     int32
	ReaderKey []byte
}

// KeyRing layers an in-memory cache of unlocked tenant keys over a
// FileStore, so a long-lived process decrypts each tenant's reader key
// from disk only once per run; later Unlock calls for the same tenant
// are served from memory.
type KeyRing struct {
	store *FileStore
	log   *slog.Logger

	unlocked sync.Map // name -> *Unlocked
}

// New wraps an already-opened FileStore.
func New(log *slog.Logger, store *FileStore) *KeyRing {
	if log == nil {
		log = slog.Default()
	}
	return &KeyRing{store: store, log: log}
}

// Enroll stores a newly minted tenant key, wrapped under
// masterPassword, and caches it in memory, so a later Unlock call for
// this tenant returns it without reading or decrypting the store.
func (k *KeyRing) Enroll(name string, keyID int32, readerKey, masterPassword []byte) error {
	if err := k.store.Put(name, keyID, readerKey, masterPassword); err != nil {
		return err
	}
	cached := make([]byte, len(readerKey))
	copy(cached, readerKey)
	k.unlocked.Store(name, &Unlocked{Name: name, KeyID: keyID, ReaderKey: cached})
	k.log.Info("keyring: enrolled tenant", "tenant", name, "key_id", keyID)
	return nil
}

// Unlock returns a tenant's reader key, decrypting it from disk on
// first use and serving the in-memory cache afterwards.
func (k *KeyRing) Unlock(name string, masterPassword []byte) (*Unlocked, error) {
	if v, ok := k.unlocked.Load(name); ok {
		return v.(*Unlocked), nil
	}
	keyID, readerKey, err := k.store.Get(name, masterPassword)
	if err != nil {
		return nil, fmt.Errorf("keyring: unlock %q: %w", name, err)
	}
	u := &Unlocked{Name: name, KeyID: keyID, ReaderKey: readerKey}
	k.unlocked.Store(name, u)
	k.log.Info("keyring: unlocked tenant", "tenant", name, "key_id", keyID)
	return u, nil
}

// Forget wipes and evicts a tenant's cached reader key without
// touching the on-disk entry.
func (k *KeyRing) Forget(name string) {
	if v, ok := k.unlocked.LoadAndDelete(name); ok {
		MemoryWipe(v.(*Unlocked).ReaderKey)
	}
}

// ForgetAll wipes and evicts every cached reader key, e.g. on process
// shutdown.
func (k *KeyRing) ForgetAll() {
	k.unlocked.Range(func(key, v any) bool {
		MemoryWipe(v.(*Unlocked).ReaderKey)
		k.unlocked.Delete(key)
		return true
	})
}

// Remove deletes a tenant's entry from the backing store entirely,
// e.g. after a key rotation has minted its replacement.
func (k *KeyRing) Remove(name string) error {
	k.Forget(name)
	return k.store.Delete(name)
}

// List returns the names of every tenant enrolled in the store,
// unlocked or not.
func (k *KeyRing) List() ([]string, error) { return k.store.List() }
