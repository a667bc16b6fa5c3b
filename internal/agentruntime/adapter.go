// Package agentruntime bridges the chat service to the deployed agent. The
// agent itself is stateless: it receives one enriched prompt per turn and
// returns free text.
package agentruntime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Request is the normalized per-turn invocation payload.
type Request struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

// Response is the agent's free-text reply.
type Response struct {
	Text string `json:"text"`
}

// Adapter invokes the agent runtime once per user turn.
type Adapter interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Config controls adapter construction.
type Config struct {
	Mode    string
	URL     string
	Token   string
	Timeout time.Duration
}

func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.URL) != "" {
			return NewHTTPAdapter(cfg.URL, cfg.Token, cfg.Timeout), nil
		}
		return NewMockAdapter(), nil
	case "http":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, errors.New("agent runtime URL is required for http mode")
		}
		return NewHTTPAdapter(cfg.URL, cfg.Token, cfg.Timeout), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported agent runtime mode %q", cfg.Mode)
	}
}
