package service

import (
	"sync"

	"github.com/iurnickita/storecredit/internal/model"
)

// keyLock is a mutex per credit pair. Entries are dropped when nobody holds
// or waits for them.
type keyLock struct {
	mu    sync.Mutex
	locks map[model.CreditKey]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[model.CreditKey]*keyLockEntry)}
}

// Lock blocks until key is free and returns the unlock func.
func (l *keyLock) Lock(key model.CreditKey) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyLockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *keyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
