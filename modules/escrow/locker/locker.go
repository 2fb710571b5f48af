// Package locker serializes work on a single deal across ingestion, the scheduler and API claims.
package locker

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
)

type Locker interface {
	// Lock blocks until the key is acquired or ctx is done. The returned func releases the lock.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// DealKey returns the lock key of a deal.
func DealKey(chainID common.ChainID, orderID entity.OrderID) string {
	return "escrow:deal:" + chainID.String() + ":" + orderID.String()
}

// Memory is an in-process keyed mutex.
type Memory struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string]*slot)}
}

func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, s)
		return nil, errors.WithStack(ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.release(key, s)
		})
	}, nil
}

func (m *Memory) release(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}
