package guarantee

import "sync"

// balanceLocks serializes guarantee creation per (organization, currency)
// pair. Two concurrent creations against the same pair could otherwise
// each observe a sufficient available balance and jointly over-commit it;
// the check and the insert must happen under one lock.
type balanceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newBalanceLocks() *balanceLocks {
	return &balanceLocks{locks: make(map[string]*sync.Mutex)}
}

func (b *balanceLocks) get(org, currency string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := org + ":" + currency
	lock, exists := b.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		b.locks[key] = lock
	}
	return lock
}
