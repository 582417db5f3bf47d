package quest

import "sync"

// userLocks hands out one exclusive lock per user. Entries are reference
// counted and dropped when the last holder releases.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// lock blocks until userID is free and returns the matching unlock func.
func (ul *userLocks) lock(userID string) func() {
	ul.mu.Lock()
	l, ok := ul.locks[userID]
	if !ok {
		l = &userLock{}
		ul.locks[userID] = l
	}
	l.refs++
	ul.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		ul.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(ul.locks, userID)
		}
		ul.mu.Unlock()
	}
}

func (ul *userLocks) size() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.locks)
}
