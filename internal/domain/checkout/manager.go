package checkout

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/google/uuid"
)

// Manager tracks the live checkout sessions of the service.
type Manager struct {
	deps   Deps
	buyNow OrderSubmitter

	mu       sync.RWMutex
	sessions map[string]*Controller

	now func() time.Time
}

// NewManager creates a Manager. buyNow receives orders of sessions seeded
// with an explicit item list; when nil they go to deps.Submitter.
func NewManager(deps Deps, buyNow OrderSubmitter) *Manager {
	return &Manager{
		deps:     deps,
		buyNow:   buyNow,
		sessions: make(map[string]*Controller),
		now:      time.Now,
	}
}

// Create starts a session for p and initializes it. A session that fails
// to load is still returned and kept so that it can be reloaded.
func (m *Manager) Create(ctx context.Context, p Principal, buyNow []order.Item) (*Controller, error) {
	deps := m.deps
	if len(buyNow) > 0 {
		deps.Carts = StaticCart(buyNow)
		if m.buyNow != nil {
			deps.Submitter = m.buyNow
		}
	}

	c := NewController(uuid.New().String(), p, deps)
	m.mu.Lock()
	m.sessions[c.ID()] = c
	m.mu.Unlock()

	log.Printf("[Checkout] Session %s created for %s (buy now: %t)", c.ID(), p.Subject, len(buyNow) > 0)
	return c, c.Initialize(ctx)
}

// Get returns the session if it belongs to p.
func (m *Manager) Get(id string, p Principal) (*Controller, error) {
	m.mu.RLock()
	c, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || c.Principal().Subject != p.Subject {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Abandon ends and forgets a session.
func (m *Manager) Abandon(id string, p Principal) error {
	c, err := m.Get(id, p)
	if err != nil {
		return err
	}
	c.Abandon()
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Sweep abandons sessions idle for longer than ttl. A session waiting on
// the payment widget is kept for paymentTTL instead (never less than ttl)
// since the shopper may still complete the charge. Sessions with a
// submission in progress are left alone. Returns the number removed.
func (m *Manager) Sweep(ttl, paymentTTL time.Duration) int {
	now := m.now()
	if paymentTTL < ttl {
		paymentTTL = ttl
	}

	m.mu.Lock()
	var expired []*Controller
	for id, c := range m.sessions {
		limit := ttl
		switch c.State() {
		case StateSubmitting:
			continue
		case StateAwaitingPayment:
			limit = paymentTTL
		}
		if c.UpdatedAt().Before(now.Add(-limit)) {
			expired = append(expired, c)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, c := range expired {
		c.Abandon()
	}
	if len(expired) > 0 {
		log.Printf("[Checkout] Swept %d idle sessions", len(expired))
	}
	return len(expired)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
