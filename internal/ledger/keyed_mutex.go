package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// keyedMutex hands out one mutex per loan id. Loans are never deleted, so
// entries are never released.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock blocks until the lock for id is held and returns its release func.
func (k *keyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
