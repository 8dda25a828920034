package engine

import (
	"sync"

	"github.com/samhoang/silk/internal/source"
)

// keyedLock allows one holder per owner/repo. The host is left out of the
// key because the cache refuses the same owner/repo under two hosts, and
// that check only holds if two clones of it never run at once.
type keyedLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{held: make(map[string]struct{})}
}

// TryLock claims ref and reports whether it was free
func (l *keyedLock) TryLock(ref source.RepoRef) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[ref.ID()]; busy {
		return false
	}
	l.held[ref.ID()] = struct{}{}
	return true
}

func (l *keyedLock) Unlock(ref source.RepoRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, ref.ID())
}

// Held reports whether ref is claimed
func (l *keyedLock) Held(ref source.RepoRef) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[ref.ID()]
	return busy
}
