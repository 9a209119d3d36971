package engine

import "sync"

// leadLocker serializes action execution per lead so two rules firing for
// the same lead never interleave their read-modify-write cycles. Locks are
// keyed by lead ID and created on demand; entries are never removed, which
// is fine at the cardinality of concurrently-active leads.
type leadLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLeadLocker() *leadLocker {
	return &leadLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *leadLocker) lock(key string) *sync.Mutex {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m
}
