package store

import "sync"

// KeyMutex hands out one mutex per key so mutations stay scoped to a single
// entity. Unrelated claims or profiles never contend. Entries are
// refcounted and dropped once the last holder unlocks, so the map stays
// proportional to in-flight work instead of total key cardinality.
type KeyMutex struct {
	mtx   sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires the mutex for key and returns its unlock func.
func (k *KeyMutex) Lock(key string) func() {
	k.mtx.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mtx.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mtx.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mtx.Unlock()
	}
}
