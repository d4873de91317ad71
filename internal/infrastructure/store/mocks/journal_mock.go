package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/google/uuid"
)

// MockJournal is a mock implementation of store.Journal for testing
type MockJournal struct {
	mu      sync.RWMutex
	entries map[string][]store.Entry

	AppendCalls    []AppendCall
	AppendErr      error
	AppendCallback func(ctx context.Context, sessionID, eventType string, data any) (*store.Entry, error)
}

// AppendCall records parameters passed to Append
type AppendCall struct {
	SessionID string
	EventType string
	Data      any
}

func NewMockJournal() *MockJournal {
	return &MockJournal{
		entries:     make(map[string][]store.Entry),
		AppendCalls: make([]AppendCall, 0),
	}
}

func (m *MockJournal) Append(ctx context.Context, sessionID, eventType string, data any) (*store.Entry, error) {
	m.mu.Lock()
	m.AppendCalls = append(m.AppendCalls, AppendCall{
		SessionID: sessionID,
		EventType: eventType,
		Data:      data,
	})
	callback := m.AppendCallback
	appendErr := m.AppendErr
	m.mu.Unlock()

	if callback != nil {
		return callback(ctx, sessionID, eventType, data)
	}
	if appendErr != nil {
		return nil, appendErr
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry := store.Entry{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		EventType: eventType,
		Data:      raw,
		Timestamp: time.Now(),
		Sequence:  len(m.entries[sessionID]) + 1,
	}
	m.entries[sessionID] = append(m.entries[sessionID], entry)
	return &entry, nil
}

func (m *MockJournal) Entries(_ context.Context, sessionID string) ([]store.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Entry, len(m.entries[sessionID]))
	copy(out, m.entries[sessionID])
	return out, nil
}

// EventTypes returns the event types appended for a session, in order
func (m *MockJournal) EventTypes(sessionID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var types []string
	for _, e := range m.entries[sessionID] {
		types = append(types, e.EventType)
	}
	return types
}

// Calls returns a copy of the recorded Append calls
func (m *MockJournal) Calls() []AppendCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AppendCall, len(m.AppendCalls))
	copy(out, m.AppendCalls)
	return out
}

// Reset clears all entries and recorded calls
func (m *MockJournal) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]store.Entry)
	m.AppendCalls = make([]AppendCall, 0)
	m.AppendErr = nil
	m.AppendCallback = nil
}
