// Package chat runs one support conversation turn end to end: read memory,
// enrich the prompt, invoke the agent runtime, persist the exchange.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/edoardoferri/stardesk/internal/agentruntime"
	"github.com/edoardoferri/stardesk/internal/memory"
	"github.com/edoardoferri/stardesk/internal/observability"
)

// fallbackReply is returned when the runtime invocation fails. The turn is
// not stored in that case.
const fallbackReply = "I apologize, but I'm experiencing technical difficulties. Please try again in a moment."

// TurnResult is the outcome of a single user turn.
type TurnResult struct {
	SessionID string   `json:"session_id"`
	Reply     string   `json:"reply"`
	FollowUps []string `json:"follow_ups,omitempty"`
}

// Service orchestrates turns between the memory manager and the runtime.
type Service struct {
	manager *memory.Manager
	runtime agentruntime.Adapter
	metrics *observability.Metrics
	logger  *log.Logger
}

func New(manager *memory.Manager, runtime agentruntime.Adapter, metrics *observability.Metrics, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stdout, "[chat] ", log.LstdFlags)
	}
	return &Service{
		manager: manager,
		runtime: runtime,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleTurn processes one user query. An empty session id starts a new
// session. Memory degradation never fails the turn; a runtime failure yields
// the apology fallback and the exchange is not persisted.
func (s *Service) HandleTurn(ctx context.Context, userID, sessionID, query string) (TurnResult, error) {
	start := time.Now()

	if strings.TrimSpace(sessionID) == "" {
		id, err := s.manager.CreateSession(ctx, userID)
		if err != nil {
			s.metrics.MemoryErrors.WithLabelValues("create_session").Inc()
		}
		sessionID = id
		s.metrics.SessionEvents.WithLabelValues("created").Inc()
	}

	prompt := s.buildPrompt(ctx, userID, sessionID, query)

	res, err := s.runtime.Invoke(ctx, agentruntime.Request{SessionID: sessionID, Prompt: prompt})
	if err != nil {
		s.logger.Printf("error invoking agent runtime: %v", err)
		s.metrics.Turns.WithLabelValues("runtime_error").Inc()
		return TurnResult{SessionID: sessionID, Reply: fallbackReply}, err
	}

	reply := cleanReply(res.Text)

	if err := s.manager.StoreMessage(ctx, userID, sessionID, query, reply); err != nil {
		s.metrics.MemoryErrors.WithLabelValues("store_message").Inc()
	}

	followUps, err := s.manager.FollowUpQuestions(ctx, userID, query)
	if err != nil {
		s.metrics.MemoryErrors.WithLabelValues("follow_ups").Inc()
	}

	s.metrics.Turns.WithLabelValues("ok").Inc()
	s.metrics.ObserveTurnLatency(time.Since(start))

	return TurnResult{SessionID: sessionID, Reply: reply, FollowUps: followUps}, nil
}

// buildPrompt enriches the query with recent conversation context and the
// derived preference snapshot. A bare query passes through unchanged.
func (s *Service) buildPrompt(ctx context.Context, userID, sessionID, query string) string {
	contextText, err := s.manager.ConversationContext(ctx, userID, sessionID, query, 0)
	if err != nil {
		s.metrics.MemoryErrors.WithLabelValues("conversation_context").Inc()
	}
	if contextText == "" {
		return query
	}

	prefs, err := s.manager.UserPreferences(ctx, userID)
	if err != nil {
		s.metrics.MemoryErrors.WithLabelValues("user_preferences").Inc()
	}
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		prefsJSON = []byte("{}")
	}

	return fmt.Sprintf("Context from previous conversations:\n%s\n\nUser preferences: %s\n\nCurrent query: %s",
		contextText, prefsJSON, query)
}

// cleanReply strips the formatting artifacts the runtime tends to emit:
// triple blank lines and long indentation runs.
func cleanReply(s string) string {
	s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	s = strings.ReplaceAll(s, strings.Repeat(" ", 20), "")
	return s
}
