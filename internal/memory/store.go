package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventStore is the append-only conversation log. One logical memory
// resource, shared by all users and sessions, partitions events by
// (actor, session).
type EventStore interface {
	// AttachMemory reuses a memory resource whose name carries the configured
	// prefix, creating one with the default retention window when none exists.
	AttachMemory(ctx context.Context) (string, error)
	Append(ctx context.Context, memoryID, actorID, sessionID string, msgs []EventMessage, ts time.Time) error
	List(ctx context.Context, memoryID, actorID, sessionID string, maxResults int) ([]StoredEvent, error)
	Delete(ctx context.Context, memoryID, sessionID, eventID, actorID string) error
}

// SessionStore is the key-value metadata table keyed by (user, session).
type SessionStore interface {
	// Ensure creates the backing table or schema when absent.
	Ensure(ctx context.Context) error
	Get(ctx context.Context, userID, sessionID string) (*SessionRecord, error)
	Put(ctx context.Context, rec SessionRecord) error
	// Query returns up to limit rows for the user in descending sort-key
	// (session id) order.
	Query(ctx context.Context, userID string, limit int) ([]SessionRecord, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

// retentionDays is the event expiry window applied when a new memory
// resource is created. The store enforces it independently of session state.
const retentionDays = 90

// newEventID builds a lexicographically time-ordered event identifier so
// stores that sort by id return events in append order.
func newEventID(ts time.Time) string {
	return fmt.Sprintf("%020d-%s", ts.UnixNano(), uuid.NewString())
}
