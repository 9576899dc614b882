package auction

import "sync"

// lockTable hands out one mutex per auction id, created lazily and freed
// once no submission holds or waits on it. Contention on one auction never
// blocks submissions to another.
type lockTable struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[int64]*lockEntry)}
}

// acquire blocks until the caller holds the exclusive lock for id.
// Waiters are served in FIFO order by the runtime's mutex semantics.
func (t *lockTable) acquire(id int64) *lockEntry {
	t.mu.Lock()
	e := t.entries[id]
	if e == nil {
		e = &lockEntry{}
		t.entries[id] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return e
}

// release unlocks e and drops the table entry when no one else needs it.
func (t *lockTable) release(id int64, e *lockEntry) {
	e.mu.Unlock()

	t.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(t.entries, id)
	}
	t.mu.Unlock()
}

// size reports the number of live entries. Test hook.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
