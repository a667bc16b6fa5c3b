package agentruntime

import (
	"context"
	"strings"
)

// MockAdapter provides deterministic local replies when no runtime is
// deployed.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Invoke(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	return Response{Text: buildMockReply(req.Prompt)}, nil
}

func buildMockReply(prompt string) string {
	q := strings.ToLower(prompt)
	switch {
	case strings.Contains(q, "warranty"):
		return "I checked our records: that product is still under warranty. Is there anything else you would like me to look up?"
	case strings.Contains(q, "mars"):
		return "The latest Mars readings show a calm sol: around -60C with light winds. Let me know if you want historical data."
	case strings.Contains(q, "profile") || strings.Contains(q, "account"):
		return "I found your account details. Tell me which field you would like to review or update."
	default:
		return "Thanks for reaching out. Could you share a few more details so I can help?"
	}
}
