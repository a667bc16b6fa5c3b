package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryEventStore is a simple in-process event log for local/dev use.
type InMemoryEventStore struct {
	mu       sync.RWMutex
	memoryID string
	prefix   string
	events   map[string][]StoredEvent // key: memoryID|actorID|sessionID
}

func NewInMemoryEventStore(namePrefix string) *InMemoryEventStore {
	return &InMemoryEventStore{
		prefix: namePrefix,
		events: make(map[string][]StoredEvent),
	}
}

func (s *InMemoryEventStore) AttachMemory(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.memoryID == "" {
		s.memoryID = s.prefix + "-" + uuid.NewString()
	}
	return s.memoryID, nil
}

func (s *InMemoryEventStore) Append(_ context.Context, memoryID, actorID, sessionID string, msgs []EventMessage, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventKey(memoryID, actorID, sessionID)
	s.events[key] = append(s.events[key], StoredEvent{
		ID:        newEventID(ts),
		Timestamp: ts,
		Payload:   payloadFromMessages(msgs),
	})
	return nil
}

func (s *InMemoryEventStore) List(_ context.Context, memoryID, actorID, sessionID string, maxResults int) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.events[eventKey(memoryID, actorID, sessionID)]
	if len(arr) == 0 {
		return nil, nil
	}
	out := make([]StoredEvent, len(arr))
	copy(out, arr)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (s *InMemoryEventStore) Delete(_ context.Context, memoryID, sessionID, eventID, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventKey(memoryID, actorID, sessionID)
	arr := s.events[key]
	for i, ev := range arr {
		if ev.ID == eventID {
			s.events[key] = append(arr[:i], arr[i+1:]...)
			return nil
		}
	}
	return nil
}

func eventKey(memoryID, actorID, sessionID string) string {
	return memoryID + "|" + actorID + "|" + sessionID
}

// InMemorySessionStore keeps session metadata in process memory.
type InMemorySessionStore struct {
	mu   sync.RWMutex
	rows map[string]map[string]SessionRecord // userID -> sessionID -> row
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{rows: make(map[string]map[string]SessionRecord)}
}

func (s *InMemorySessionStore) Ensure(_ context.Context) error { return nil }

func (s *InMemorySessionStore) Get(_ context.Context, userID, sessionID string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rows[userID][sessionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemorySessionStore) Put(_ context.Context, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows[rec.UserID] == nil {
		s.rows[rec.UserID] = make(map[string]SessionRecord)
	}
	s.rows[rec.UserID][rec.SessionID] = rec
	return nil
}

func (s *InMemorySessionStore) Query(_ context.Context, userID string, limit int) ([]SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SessionRecord, 0, len(s.rows[userID]))
	for _, rec := range s.rows[userID] {
		out = append(out, rec)
	}
	// Descending sort-key order, matching the table-backed stores.
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID > out[j].SessionID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[userID], sessionID)
	return nil
}
