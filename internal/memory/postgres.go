package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresEventStore persists conversation events in PostgreSQL for
// self-hosted deployments.
type PostgresEventStore struct {
	pool   *pgxpool.Pool
	prefix string
}

// PostgresSessionStore persists session metadata in PostgreSQL.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStores connects once and returns both stores sharing the pool.
func NewPostgresStores(ctx context.Context, databaseURL, namePrefix string) (*PostgresEventStore, *PostgresSessionStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresEventStore{pool: pool, prefix: namePrefix}, &PostgresSessionStore{pool: pool}, nil
}

// Close releases the shared connection pool.
func (s *PostgresEventStore) Close() { s.pool.Close() }

func (s *PostgresEventStore) AttachMemory(ctx context.Context) (string, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_resources (
			id TEXT PRIMARY KEY,
			retention_days INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS conversation_events (
			memory_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			event_ts TIMESTAMPTZ NOT NULL,
			payload JSONB NOT NULL,
			PRIMARY KEY (memory_id, actor_id, session_id, event_id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return "", fmt.Errorf("init event schema failed on %q: %w", stmt, err)
		}
	}

	var memoryID string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM memory_resources WHERE id LIKE $1 || '%' ORDER BY created_at LIMIT 1`,
		s.prefix,
	).Scan(&memoryID)
	if err == nil {
		return memoryID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("find memory resource: %w", err)
	}

	memoryID = s.prefix + "-" + uuid.NewString()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO memory_resources (id, retention_days) VALUES ($1, $2)`,
		memoryID, retentionDays,
	); err != nil {
		return "", fmt.Errorf("create memory resource: %w", err)
	}
	return memoryID, nil
}

func (s *PostgresEventStore) Append(ctx context.Context, memoryID, actorID, sessionID string, msgs []EventMessage, ts time.Time) error {
	payload, err := encodePayload(msgs)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_events (memory_id, actor_id, session_id, event_id, event_ts, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		memoryID, actorID, sessionID, newEventID(ts), ts.UTC(), payload,
	); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) List(ctx context.Context, memoryID, actorID, sessionID string, maxResults int) ([]StoredEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, event_ts, payload FROM conversation_events
		 WHERE memory_id=$1 AND actor_id=$2 AND session_id=$3
		 ORDER BY event_id LIMIT $4`,
		memoryID, actorID, sessionID, maxResults,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var (
			ev  StoredEvent
			raw []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &raw); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		payload, err := decodePayload(raw)
		if err != nil {
			continue
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

func (s *PostgresEventStore) Delete(ctx context.Context, memoryID, sessionID, eventID, actorID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_events
		 WHERE memory_id=$1 AND actor_id=$2 AND session_id=$3 AND event_id=$4`,
		memoryID, actorID, sessionID, eventID,
	); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Ensure(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS support_sessions (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		last_message TEXT NOT NULL DEFAULT '',
		last_response TEXT NOT NULL DEFAULT '',
		last_updated TIMESTAMPTZ NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, session_id)
	);`
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init session schema: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Get(ctx context.Context, userID, sessionID string) (*SessionRecord, error) {
	var rec SessionRecord
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, session_id, last_message, last_response, last_updated, message_count
		 FROM support_sessions WHERE user_id=$1 AND session_id=$2`,
		userID, sessionID,
	).Scan(&rec.UserID, &rec.SessionID, &rec.LastMessage, &rec.LastResponse, &rec.LastUpdated, &rec.MessageCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session row: %w", err)
	}
	return &rec, nil
}

func (s *PostgresSessionStore) Put(ctx context.Context, rec SessionRecord) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO support_sessions (user_id, session_id, last_message, last_response, last_updated, message_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, session_id) DO UPDATE SET
			last_message=EXCLUDED.last_message,
			last_response=EXCLUDED.last_response,
			last_updated=EXCLUDED.last_updated,
			message_count=EXCLUDED.message_count`,
		rec.UserID, rec.SessionID, rec.LastMessage, rec.LastResponse, rec.LastUpdated.UTC(), rec.MessageCount,
	); err != nil {
		return fmt.Errorf("put session row: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) Query(ctx context.Context, userID string, limit int) ([]SessionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, session_id, last_message, last_response, last_updated, message_count
		 FROM support_sessions WHERE user_id=$1 ORDER BY session_id DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	recs := make([]SessionRecord, 0, limit)
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.UserID, &rec.SessionID, &rec.LastMessage, &rec.LastResponse, &rec.LastUpdated, &rec.MessageCount); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return recs, nil
}

func (s *PostgresSessionStore) Delete(ctx context.Context, userID, sessionID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM support_sessions WHERE user_id=$1 AND session_id=$2`,
		userID, sessionID,
	); err != nil {
		return fmt.Errorf("delete session row: %w", err)
	}
	return nil
}
