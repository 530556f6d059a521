package amm

import (
	"sync"

	"liquidityEngine/internal/model"
)

// poolLocks hands out one mutex per pool. Entries are never removed; the set
// of pools is bounded by what the store holds.
type poolLocks struct {
	mu    sync.Mutex
	locks map[model.PoolKey]*sync.Mutex
}

func newPoolLocks() *poolLocks {
	return &poolLocks{locks: make(map[model.PoolKey]*sync.Mutex)}
}

func (p *poolLocks) lock(key model.PoolKey) func() {
	p.mu.Lock()
	m, ok := p.locks[key]
	if !ok {
		m = &sync.Mutex{}
		p.locks[key] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
