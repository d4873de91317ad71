package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded step of a checkout session.
type Entry struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int             `json:"sequence"`
}

// Journal records checkout session steps in order.
type Journal interface {
	Append(ctx context.Context, sessionID, eventType string, data any) (*Entry, error)
	Entries(ctx context.Context, sessionID string) ([]Entry, error)
}

// Publisher forwards appended entries to a message broker.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

// MemoryJournal keeps entries in process. Used when no database is configured.
type MemoryJournal struct {
	mu        sync.RWMutex
	entries   map[string][]Entry
	publisher Publisher
}

func NewMemoryJournal(publisher Publisher) *MemoryJournal {
	return &MemoryJournal{
		entries:   make(map[string][]Entry),
		publisher: publisher,
	}
}

// Append stores an entry and publishes it when a publisher is configured
func (j *MemoryJournal) Append(ctx context.Context, sessionID, eventType string, data any) (*Entry, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	entry := Entry{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		EventType: eventType,
		Data:      raw,
		Timestamp: time.Now(),
		Sequence:  len(j.entries[sessionID]) + 1,
	}
	j.entries[sessionID] = append(j.entries[sessionID], entry)
	j.mu.Unlock()

	if j.publisher != nil {
		if err := j.publisher.Publish(ctx, sessionID, entry); err != nil {
			return &entry, err
		}
	}
	return &entry, nil
}

// Entries returns a copy of the entries for a session
func (j *MemoryJournal) Entries(_ context.Context, sessionID string) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Entry, len(j.entries[sessionID]))
	copy(out, j.entries[sessionID])
	return out, nil
}
