package application

import (
	"sort"
	"sync"
)

// accountLocks hands out one mutex per treasury account. Multi-account
// operations take their locks in ascending id order.
type accountLocks struct {
	mu    sync.Mutex
	locks map[uint64]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[uint64]*accountLock)}
}

func (l *accountLocks) acquire(ids ...uint64) func() {
	ordered := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	held := make([]*accountLock, 0, len(ordered))
	for _, id := range ordered {
		lk := l.ref(id)
		lk.mu.Lock()
		held = append(held, lk)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.unref(ordered[i])
		}
	}
}

func (l *accountLocks) ref(id uint64) *accountLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &accountLock{}
		l.locks[id] = lk
	}
	lk.refs++
	return lk
}

func (l *accountLocks) unref(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk := l.locks[id]
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, id)
	}
}
