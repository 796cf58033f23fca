package ephemeral

import "sync"

// Locks serialises read-modify-write cycles on one KV key within the
// process. Entries are dropped once no goroutine holds or waits on them.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu      sync.Mutex
	waiters int
}

func NewLocks() *Locks {
	return &Locks{entries: make(map[string]*lockEntry)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (l *Locks) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{}
		l.entries[key] = e
	}
	e.waiters++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.waiters--
		if e.waiters == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}
