package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the support agent service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	MemoryBackend    string
	AWSRegion        string
	SessionTable     string
	EventTable       string
	MemoryNamePrefix string
	DatabaseURL      string

	RuntimeMode    string
	RuntimeURL     string
	RuntimeToken   string
	RuntimeTimeout time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "stardesk"),
		AllowAnyOrigin:   false,
		MemoryBackend:    envOrDefault("MEMORY_BACKEND", "auto"),
		AWSRegion:        trimmedEnv("AWS_REGION"),
		SessionTable:     envOrDefault("MEMORY_SESSION_TABLE", "stardesk-support-sessions"),
		EventTable:       envOrDefault("MEMORY_EVENT_TABLE", "stardesk-conversation-events"),
		MemoryNamePrefix: envOrDefault("MEMORY_NAME_PREFIX", "supportAgentMemory"),
		DatabaseURL:      trimmedEnv("DATABASE_URL"),
		RuntimeMode:      envOrDefault("AGENT_RUNTIME_MODE", "auto"),
		RuntimeURL:       trimmedEnv("AGENT_RUNTIME_URL"),
		RuntimeToken:     trimmedEnv("AGENT_RUNTIME_TOKEN"),
		RuntimeTimeout:   60 * time.Second,
		ShutdownTimeout:  15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RuntimeTimeout, err = durationFromEnv("AGENT_RUNTIME_TIMEOUT", cfg.RuntimeTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.MemoryBackend)) {
	case "auto", "dynamodb", "postgres", "memory":
	default:
		return Config{}, fmt.Errorf("invalid MEMORY_BACKEND: %q (expected auto|dynamodb|postgres|memory)", cfg.MemoryBackend)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.RuntimeMode)) {
	case "auto", "http", "mock":
	default:
		return Config{}, fmt.Errorf("invalid AGENT_RUNTIME_MODE: %q (expected auto|http|mock)", cfg.RuntimeMode)
	}
	if strings.TrimSpace(cfg.SessionTable) == "" {
		return Config{}, fmt.Errorf("MEMORY_SESSION_TABLE must not be empty")
	}
	if strings.TrimSpace(cfg.EventTable) == "" {
		return Config{}, fmt.Errorf("MEMORY_EVENT_TABLE must not be empty")
	}
	if strings.TrimSpace(cfg.MemoryNamePrefix) == "" {
		return Config{}, fmt.Errorf("MEMORY_NAME_PREFIX must not be empty")
	}
	if cfg.RuntimeTimeout <= 0 {
		return Config{}, fmt.Errorf("AGENT_RUNTIME_TIMEOUT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
