package memory

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// StoreConfig selects and parameterizes the store backend.
type StoreConfig struct {
	Backend          string // auto|dynamodb|postgres|memory
	AWSRegion        string
	SessionTable     string
	EventTable       string
	MemoryNamePrefix string
	DatabaseURL      string
}

// Stores bundles the two store handles behind one lifecycle.
type Stores struct {
	Events   EventStore
	Sessions SessionStore
	Backend  string

	close func()
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// NewStores builds the configured backend. "auto" prefers postgres when a
// database URL is set, then dynamodb when an AWS region is configured, and
// falls back to in-process stores.
func NewStores(ctx context.Context, cfg StoreConfig) (*Stores, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" || backend == "auto" {
		switch {
		case strings.TrimSpace(cfg.DatabaseURL) != "":
			backend = "postgres"
		case strings.TrimSpace(cfg.AWSRegion) != "":
			backend = "dynamodb"
		default:
			backend = "memory"
		}
	}

	switch backend {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg)
		return &Stores{
			Events:   NewDynamoEventStore(client, cfg.EventTable, cfg.MemoryNamePrefix),
			Sessions: NewDynamoSessionStore(client, cfg.SessionTable),
			Backend:  backend,
		}, nil
	case "postgres":
		events, sessions, err := NewPostgresStores(ctx, cfg.DatabaseURL, cfg.MemoryNamePrefix)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Events:   events,
			Sessions: sessions,
			Backend:  backend,
			close:    events.Close,
		}, nil
	case "memory":
		return &Stores{
			Events:   NewInMemoryEventStore(cfg.MemoryNamePrefix),
			Sessions: NewInMemorySessionStore(),
			Backend:  backend,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported memory backend %q", cfg.Backend)
	}
}
