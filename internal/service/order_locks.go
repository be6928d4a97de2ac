package service

import "sync"

// orderLocks provides a mutex per order id. Every status-mutating operation
// on one order (confirm, complete, cancel, auto-expire) runs inside this
// critical section, so a manual confirm and a deadline fire can never both
// apply a terminal transition.
type orderLocks struct {
	mu    sync.Mutex
	locks map[int64]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[int64]*orderLock)}
}

// lock acquires the critical section for orderID and returns its release
// function. Entries are refcounted and removed once unused.
func (l *orderLocks) lock(orderID int64) func() {
	l.mu.Lock()
	e, ok := l.locks[orderID]
	if !ok {
		e = &orderLock{}
		l.locks[orderID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, orderID)
		}
		l.mu.Unlock()
	}
}
