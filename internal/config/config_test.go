package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.MemoryBackend != "auto" {
		t.Fatalf("MemoryBackend = %q, want %q", cfg.MemoryBackend, "auto")
	}
	if cfg.RuntimeMode != "auto" {
		t.Fatalf("RuntimeMode = %q, want %q", cfg.RuntimeMode, "auto")
	}
	if cfg.RuntimeURL != "" {
		t.Fatalf("RuntimeURL = %q, want empty default", cfg.RuntimeURL)
	}
	if cfg.SessionTable != "stardesk-support-sessions" {
		t.Fatalf("SessionTable = %q, want default", cfg.SessionTable)
	}
	if cfg.RuntimeTimeout != 60*time.Second {
		t.Fatalf("RuntimeTimeout = %v, want 60s", cfg.RuntimeTimeout)
	}
}

func TestLoadUsesExplicitRuntimeURL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("AGENT_RUNTIME_URL", "http://localhost:7777/invocations")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RuntimeURL != "http://localhost:7777/invocations" {
		t.Fatalf("RuntimeURL = %q, want explicit value", cfg.RuntimeURL)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("MEMORY_BACKEND", "cassandra")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for unknown backend")
	}
}

func TestLoadRejectsBadRuntimeTimeout(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("AGENT_RUNTIME_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for unparsable timeout")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"MEMORY_BACKEND",
		"AWS_REGION",
		"MEMORY_SESSION_TABLE",
		"MEMORY_EVENT_TABLE",
		"MEMORY_NAME_PREFIX",
		"DATABASE_URL",
		"AGENT_RUNTIME_MODE",
		"AGENT_RUNTIME_URL",
		"AGENT_RUNTIME_TOKEN",
		"AGENT_RUNTIME_TIMEOUT",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
