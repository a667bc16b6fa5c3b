package agentruntime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPAdapterStringResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["prompt"] != "hello" {
			t.Errorf("prompt = %q, want %q", body["prompt"], "hello")
		}
		if got := r.Header.Get("X-Session-Id"); got != "session-1" {
			t.Errorf("X-Session-Id = %q, want session-1", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode("hi there")
	}))
	defer ts.Close()

	a := NewHTTPAdapter(ts.URL, "tok", 0)
	res, err := a.Invoke(context.Background(), Request{SessionID: "session-1", Prompt: "hello"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Text != "hi there" {
		t.Fatalf("Text = %q, want %q", res.Text, "hi there")
	}
}

func TestHTTPAdapterObjectResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"output": "object reply"})
	}))
	defer ts.Close()

	a := NewHTTPAdapter(ts.URL, "", 0)
	res, err := a.Invoke(context.Background(), Request{Prompt: "q"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Text != "object reply" {
		t.Fatalf("Text = %q, want %q", res.Text, "object reply")
	}
}

func TestHTTPAdapterErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	a := NewHTTPAdapter(ts.URL, "", 0)
	if _, err := a.Invoke(context.Background(), Request{Prompt: "q"}); err == nil {
		t.Fatalf("Invoke() expected error for non-2xx status")
	}
}

func TestNewAdapterModes(t *testing.T) {
	if _, err := NewAdapter(Config{Mode: "http"}); err == nil {
		t.Fatalf("NewAdapter(http) without URL should fail")
	}
	a, err := NewAdapter(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewAdapter(auto) error = %v", err)
	}
	if _, ok := a.(*MockAdapter); !ok {
		t.Fatalf("auto mode without URL should fall back to mock, got %T", a)
	}
	if _, err := NewAdapter(Config{Mode: "grpc"}); err == nil {
		t.Fatalf("NewAdapter(grpc) should fail")
	}
}
