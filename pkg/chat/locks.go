package chat

import "sync"

// lockTable hands out one mutex per (owner, model) pair so resolve-or-create
// is a serialization point instead of a check-then-act race. Locks are never
// held across the inference call.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the pair and returns the release func.
func (t *lockTable) acquire(ownerID, modelID string) func() {
	key := ownerID + "\x00" + modelID
	t.mu.Lock()
	m, ok := t.locks[key]
	if !ok {
		m = &sync.Mutex{}
		t.locks[key] = m
	}
	t.mu.Unlock()
	m.Lock()
	return m.Unlock
}
