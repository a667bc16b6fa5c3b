// Package memory coordinates the two session stores behind the support
// agent: an append-only conversation event log and a key-value table of
// session metadata. The two stores are independently consistent; the
// manager never wraps them in a transaction and never lets a store failure
// reach the caller as anything other than a fallback value plus an advisory
// error. A memory outage must not block the agent from answering.
package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// eventPageSize caps how many events a single read requests.
	eventPageSize = 100
	// previewLimit truncates the metadata row's message previews.
	previewLimit = 100
	// contextBodyLimit truncates each transcript line's message body.
	contextBodyLimit = 200
	// defaultContextMessages is used when the caller passes no limit.
	defaultContextMessages = 10
	// messageOrderDelay separates the user and assistant event timestamps.
	// The event store orders by timestamp, not insertion, so the assistant
	// turn must be stamped strictly after the user turn.
	messageOrderDelay = 100 * time.Millisecond
)

// Manager mediates between the event store and the session metadata store.
// Construction never fails: when either store cannot be attached the manager
// runs degraded, returning empty results from reads and skipping writes.
type Manager struct {
	events   EventStore
	sessions SessionStore
	logger   *log.Logger

	memoryID      string
	sessionsReady bool
	orderDelay    time.Duration
}

// NewManager attaches both stores. Attachment failures are logged, not
// returned; Available reports the outcome.
func NewManager(ctx context.Context, events EventStore, sessions SessionStore, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stdout, "[memory] ", log.LstdFlags)
	}
	m := &Manager{
		events:     events,
		sessions:   sessions,
		logger:     logger,
		orderDelay: messageOrderDelay,
	}

	memoryID, err := events.AttachMemory(ctx)
	if err != nil {
		logger.Printf("memory attach failed, conversation memory disabled: %v", err)
	} else {
		m.memoryID = memoryID
		logger.Printf("using memory resource %s", memoryID)
	}

	if err := sessions.Ensure(ctx); err != nil {
		logger.Printf("session table unavailable: %v", err)
	} else {
		m.sessionsReady = true
	}

	return m
}

// Available reports whether the conversation event store is attached.
func (m *Manager) Available() bool {
	return m.memoryID != ""
}

// CreateSession generates a new session identifier and writes its initial
// metadata row. The identifier is returned even when the write fails.
func (m *Manager) CreateSession(ctx context.Context, userID string) (string, error) {
	sessionID := "session-" + uuid.NewString()

	if !m.sessionsReady {
		m.logger.Printf("session table not available, session metadata not stored")
		return sessionID, nil
	}

	rec := SessionRecord{
		UserID:       userID,
		SessionID:    sessionID,
		LastMessage:  "New session started",
		LastResponse: "",
		LastUpdated:  time.Now().UTC(),
		MessageCount: 0,
	}
	if err := m.sessions.Put(ctx, rec); err != nil {
		m.logger.Printf("error creating session metadata: %v", err)
		return sessionID, err
	}
	return sessionID, nil
}

// StoreMessage records one user/assistant exchange: two events in the event
// store followed by a metadata update. The steps are independent and
// best-effort; a failure aborts the remaining steps without rolling back the
// completed ones.
func (m *Manager) StoreMessage(ctx context.Context, userID, sessionID, message, response string) error {
	if m.memoryID == "" {
		return nil
	}

	actorID := SanitizeActorID(userID)

	userTS := time.Now().UTC()
	err := m.events.Append(ctx, m.memoryID, actorID, sessionID,
		[]EventMessage{{Text: message, Role: wireRoleUser}}, userTS)
	if err != nil {
		m.logger.Printf("error storing user message: %v", err)
		return err
	}

	time.Sleep(m.orderDelay)

	respTS := time.Now().UTC()
	err = m.events.Append(ctx, m.memoryID, actorID, sessionID,
		[]EventMessage{{Text: response, Role: wireRoleAssistant}}, respTS)
	if err != nil {
		m.logger.Printf("error storing assistant message: %v", err)
		return err
	}

	if err := m.updateSessionMetadata(ctx, userID, sessionID, message, response); err != nil {
		m.logger.Printf("error updating session metadata: %v", err)
		return err
	}
	return nil
}

func (m *Manager) updateSessionMetadata(ctx context.Context, userID, sessionID, message, response string) error {
	if !m.sessionsReady {
		m.logger.Printf("session table not available for metadata update")
		return nil
	}

	count := 0
	existing, err := m.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		m.logger.Printf("error reading session row, assuming new session: %v", err)
	} else if existing != nil {
		count = existing.MessageCount
	}

	return m.sessions.Put(ctx, SessionRecord{
		UserID:       userID,
		SessionID:    sessionID,
		LastMessage:  truncate(message, previewLimit),
		LastResponse: truncate(response, previewLimit),
		LastUpdated:  time.Now().UTC(),
		MessageCount: count + 1,
	})
}

// SessionMessages returns the session's turns in timestamp order. Events
// with a missing or empty conversational payload are skipped.
func (m *Manager) SessionMessages(ctx context.Context, userID, sessionID string) ([]Turn, error) {
	if m.memoryID == "" {
		return []Turn{}, nil
	}

	actorID := SanitizeActorID(userID)
	events, err := m.events.List(ctx, m.memoryID, actorID, sessionID, eventPageSize)
	if err != nil {
		m.logger.Printf("error getting session messages: %v", err)
		return []Turn{}, err
	}

	turns := make([]Turn, 0, len(events))
	for _, ev := range events {
		if len(ev.Payload) == 0 {
			continue
		}
		conv := ev.Payload[0].Conversational
		if conv == nil || conv.Content.Text == "" {
			continue
		}
		role := RoleAssistant
		if conv.Role == wireRoleUser {
			role = RoleUser
		}
		turns = append(turns, Turn{Role: role, Content: conv.Content.Text, Timestamp: ev.Timestamp})
	}

	// The store's return order is not trusted.
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].Timestamp.Before(turns[j].Timestamp)
	})
	return turns, nil
}

// ConversationContext renders the most recent turns as a "Human:"/
// "Assistant:" transcript with each body truncated to 200 characters. The
// query parameter is accepted for callers but does not influence the output.
func (m *Manager) ConversationContext(ctx context.Context, userID, sessionID, query string, maxMessages int) (string, error) {
	if maxMessages <= 0 {
		maxMessages = defaultContextMessages
	}

	turns, err := m.SessionMessages(ctx, userID, sessionID)
	if len(turns) > maxMessages {
		turns = turns[len(turns)-maxMessages:]
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		role := "Assistant"
		if t.Role == RoleUser {
			role = "Human"
		}
		lines = append(lines, role+": "+truncate(t.Content, contextBodyLimit))
	}
	return strings.Join(lines, "\n"), err
}

// UserSessions lists the user's session metadata rows, sort-key descending,
// capped at limit (default 10). Unavailability yields an empty list.
func (m *Manager) UserSessions(ctx context.Context, userID string, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	if !m.sessionsReady {
		m.logger.Printf("session table not available")
		return []SessionRecord{}, nil
	}

	recs, err := m.sessions.Query(ctx, userID, limit)
	if err != nil {
		m.logger.Printf("error getting user sessions: %v", err)
		return []SessionRecord{}, err
	}
	return recs, nil
}

// DeleteSession removes the session's events one by one, then its metadata
// row. Individual event delete failures are logged and skipped. It reports
// success only when at least one event was removed, so deleting a session
// that never stored a turn returns false even though the metadata row may
// have been deleted; callers rely on that behavior.
func (m *Manager) DeleteSession(ctx context.Context, userID, sessionID string) (bool, error) {
	if m.memoryID == "" {
		m.logger.Printf("error deleting session %s: memory not available", sessionID)
		return false, nil
	}

	actorID := SanitizeActorID(userID)
	events, err := m.events.List(ctx, m.memoryID, actorID, sessionID, eventPageSize)
	if err != nil {
		m.logger.Printf("error deleting session %s: %v", sessionID, err)
		return false, err
	}

	deleted := 0
	for _, ev := range events {
		if err := m.events.Delete(ctx, m.memoryID, sessionID, ev.ID, actorID); err != nil {
			m.logger.Printf("failed to delete event %s: %v", ev.ID, err)
			continue
		}
		deleted++
	}

	if m.sessionsReady {
		if err := m.sessions.Delete(ctx, userID, sessionID); err != nil {
			m.logger.Printf("failed to delete session metadata: %v", err)
		}
	}

	m.logger.Printf("deleted session %s: %d events removed", sessionID, deleted)
	return deleted > 0, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
