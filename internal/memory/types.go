package memory

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single immutable conversation record parsed from the event store.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionRecord is the metadata row kept per (user, session) pair.
type SessionRecord struct {
	UserID       string    `json:"user_id" dynamodbav:"user_id"`
	SessionID    string    `json:"session_id" dynamodbav:"session_id"`
	LastMessage  string    `json:"last_message" dynamodbav:"last_message"`
	LastResponse string    `json:"last_response" dynamodbav:"last_response"`
	LastUpdated  time.Time `json:"last_updated" dynamodbav:"last_updated"`
	MessageCount int       `json:"message_count" dynamodbav:"message_count"`
}

// Preferences is a derived, non-persisted view of a user's conversation
// history. CommunicationStyle and ResponseLength are fixed defaults, not
// inferred from data.
type Preferences struct {
	CommunicationStyle string   `json:"communication_style"`
	PreferredTopics    []string `json:"preferred_topics"`
	CommonIssues       []string `json:"common_issues"`
	ResponseLength     string   `json:"response_length"`
}

// EventMessage is one (text, role) pair appended to the event store. The
// role uses the store's wire alphabet ("USER"/"ASSISTANT").
type EventMessage struct {
	Text string
	Role string
}

const (
	wireRoleUser      = "USER"
	wireRoleAssistant = "ASSISTANT"
)

// StoredEvent is an event as returned by the event store: an opaque
// structured payload plus the store-assigned identity and timestamp.
type StoredEvent struct {
	ID        string
	Timestamp time.Time
	Payload   []EventPayload
}

// EventPayload mirrors the conversational event document format. Entries
// with a missing conversational body are treated as malformed and skipped.
type EventPayload struct {
	Conversational *ConversationalPayload `json:"conversational,omitempty"`
}

// ConversationalPayload carries one turn inside an event payload.
type ConversationalPayload struct {
	Role    string       `json:"role"`
	Content EventContent `json:"content"`
}

// EventContent wraps the turn text.
type EventContent struct {
	Text string `json:"text"`
}

func payloadFromMessages(msgs []EventMessage) []EventPayload {
	out := make([]EventPayload, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, EventPayload{
			Conversational: &ConversationalPayload{
				Role:    m.Role,
				Content: EventContent{Text: m.Text},
			},
		})
	}
	return out
}

func encodePayload(msgs []EventMessage) ([]byte, error) {
	return json.Marshal(payloadFromMessages(msgs))
}

func decodePayload(raw []byte) ([]EventPayload, error) {
	var out []EventPayload
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
