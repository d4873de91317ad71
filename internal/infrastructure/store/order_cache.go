package store

import (
	"context"
	"errors"
	"sync"

	"github.com/example/ec-checkout/internal/domain/order"
)

var ErrCacheMiss = errors.New("cache miss")

// OrderCache holds the most recent order placed by each user. Every
// successful checkout overwrites the previous entry.
type OrderCache interface {
	SetLast(ctx context.Context, userID string, o *order.Order) error
	GetLast(ctx context.Context, userID string) (*order.Order, error)
}

type MemoryOrderCache struct {
	mu     sync.RWMutex
	orders map[string]order.Order
}

func NewMemoryOrderCache() *MemoryOrderCache {
	return &MemoryOrderCache{orders: make(map[string]order.Order)}
}

func (c *MemoryOrderCache) SetLast(_ context.Context, userID string, o *order.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *o
	cp.Payload = o.Payload.Clone()
	c.orders[userID] = cp
	return nil
}

func (c *MemoryOrderCache) GetLast(_ context.Context, userID string) (*order.Order, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.orders[userID]
	if !ok {
		return nil, ErrCacheMiss
	}
	o.Payload = o.Payload.Clone()
	return &o, nil
}
