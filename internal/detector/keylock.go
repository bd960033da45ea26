package detector

import "sync"

// keyLock serializes critical sections per string key. Used to make the
// read-then-write baseline update atomic per (user, parameter, tier) when
// samples for the same subject are processed concurrently.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use. The key space is
// bounded by subjects x parameters x tiers, so entries are never evicted.
func (k *keyLock) Lock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
}

// Unlock releases the mutex for key. Must follow a Lock for the same key.
func (k *keyLock) Unlock(key string) {
	k.mu.Lock()
	m := k.locks[key]
	k.mu.Unlock()
	if m != nil {
		m.Unlock()
	}
}
