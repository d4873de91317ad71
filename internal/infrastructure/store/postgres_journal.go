package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS checkout_journal (
	id          UUID PRIMARY KEY,
	session_id  TEXT        NOT NULL,
	event_type  TEXT        NOT NULL,
	data        JSONB       NOT NULL,
	sequence    INTEGER     NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (session_id, sequence)
)`

// PostgresJournal stores session entries in PostgreSQL and forwards them to
// the publisher after the insert commits.
type PostgresJournal struct {
	db        *sql.DB
	publisher Publisher
}

func NewPostgresJournal(db *sql.DB, publisher Publisher) *PostgresJournal {
	return &PostgresJournal{db: db, publisher: publisher}
}

// EnsureSchema creates the journal table if it does not exist
func (j *PostgresJournal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, journalSchema); err != nil {
		return fmt.Errorf("create checkout_journal: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Append(ctx context.Context, sessionID, eventType string, data any) (*Entry, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin journal tx: %w", err)
	}
	defer tx.Rollback()

	// Appends for one session are serialized until commit so that two
	// writers cannot read the same MAX(sequence).
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", sessionID); err != nil {
		return nil, fmt.Errorf("lock journal session: %w", err)
	}

	var current int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sequence), 0) FROM checkout_journal WHERE session_id = $1",
		sessionID,
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("read journal sequence: %w", err)
	}

	entry := Entry{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		EventType: eventType,
		Data:      raw,
		Timestamp: time.Now().UTC(),
		Sequence:  current + 1,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkout_journal (id, session_id, event_type, data, sequence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID,
		entry.SessionID,
		entry.EventType,
		[]byte(entry.Data),
		entry.Sequence,
		entry.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert journal entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit journal entry: %w", err)
	}

	if j.publisher != nil {
		if err := j.publisher.Publish(ctx, sessionID, entry); err != nil {
			return &entry, err
		}
	}
	return &entry, nil
}

func (j *PostgresJournal) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, event_type, data, sequence, created_at
		 FROM checkout_journal
		 WHERE session_id = $1
		 ORDER BY sequence ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var data []byte
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &data, &e.Sequence, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Data = data
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
