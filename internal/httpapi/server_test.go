package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edoardoferri/stardesk/internal/agentruntime"
	"github.com/edoardoferri/stardesk/internal/chat"
	"github.com/edoardoferri/stardesk/internal/config"
	"github.com/edoardoferri/stardesk/internal/memory"
	"github.com/edoardoferri/stardesk/internal/observability"
)

type echoAdapter struct{}

func (echoAdapter) Invoke(_ context.Context, req agentruntime.Request) (agentruntime.Response, error) {
	return agentruntime.Response{Text: "echo: " + req.Prompt}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{AllowAnyOrigin: true}
	manager := memory.NewManager(context.Background(),
		memory.NewInMemoryEventStore("testMemory"),
		memory.NewInMemorySessionStore(),
		log.New(io.Discard, "", 0))
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%d", time.Now().UnixNano()))
	chatService := chat.New(manager, echoAdapter{}, metrics, log.New(io.Discard, "", 0))
	return New(cfg, manager, chatService, metrics)
}

func TestServersRegisterDistinctMetrics(t *testing.T) {
	// Metric names are registered globally, so building two servers within
	// the same second must still yield distinct namespaces or the second
	// registration panics.
	_ = newTestServer(t)
	_ = newTestServer(t)
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"user_id": "user-1"})
	res, err := http.Post(ts.URL+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var created map[string]any
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	sessionID, _ := created["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("missing session_id in create response: %+v", created)
	}

	chatBody, _ := json.Marshal(map[string]string{
		"user_id":    "user-1",
		"session_id": sessionID,
		"message":    "hello",
	})
	chatRes, err := http.Post(ts.URL+"/v1/chat", "application/json", bytes.NewReader(chatBody))
	if err != nil {
		t.Fatalf("chat request error = %v", err)
	}
	defer chatRes.Body.Close()
	if chatRes.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d, want %d", chatRes.StatusCode, http.StatusOK)
	}
	var turn map[string]any
	if err := json.NewDecoder(chatRes.Body).Decode(&turn); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if reply, _ := turn["reply"].(string); !strings.HasPrefix(reply, "echo: ") {
		t.Fatalf("reply = %v, want echoed text", turn["reply"])
	}

	listRes, err := http.Get(ts.URL + "/v1/sessions?user_id=user-1")
	if err != nil {
		t.Fatalf("list sessions request error = %v", err)
	}
	defer listRes.Body.Close()
	var list struct {
		Sessions []memory.SessionRecord `json:"sessions"`
	}
	if err := json.NewDecoder(listRes.Body).Decode(&list); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].SessionID != sessionID {
		t.Fatalf("sessions = %+v, want the created session", list.Sessions)
	}

	msgRes, err := http.Get(ts.URL + "/v1/sessions/" + sessionID + "/messages?user_id=user-1")
	if err != nil {
		t.Fatalf("messages request error = %v", err)
	}
	defer msgRes.Body.Close()
	var msgs struct {
		Messages []memory.Turn `json:"messages"`
	}
	if err := json.NewDecoder(msgRes.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode messages response: %v", err)
	}
	if len(msgs.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs.Messages))
	}

	delReq, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/sessions/"+sessionID+"?user_id=user-1", nil)
	delRes, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("delete request error = %v", err)
	}
	defer delRes.Body.Close()
	var deleted struct {
		Deleted bool `json:"deleted"`
	}
	if err := json.NewDecoder(delRes.Body).Decode(&deleted); err != nil {
		t.Fatalf("decode delete response: %v", err)
	}
	if !deleted.Deleted {
		t.Fatalf("delete of a populated session should report deleted=true")
	}

	againReq, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/sessions/"+sessionID+"?user_id=user-1", nil)
	againRes, err := http.DefaultClient.Do(againReq)
	if err != nil {
		t.Fatalf("second delete request error = %v", err)
	}
	defer againRes.Body.Close()
	var again struct {
		Deleted bool `json:"deleted"`
	}
	if err := json.NewDecoder(againRes.Body).Decode(&again); err != nil {
		t.Fatalf("decode second delete response: %v", err)
	}
	if again.Deleted {
		t.Fatalf("delete with no remaining events should report deleted=false")
	}
}

func TestListSessionsRequiresUserID(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/v1/sessions")
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"user_id": "user-1", "message": "   "})
	res, err := http.Post(ts.URL+"/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestUIRoutes(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	rootRes, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer rootRes.Body.Close()
	if rootRes.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("GET / status = %d, want %d", rootRes.StatusCode, http.StatusTemporaryRedirect)
	}
	if loc := rootRes.Header.Get("Location"); loc != "/ui/" {
		t.Fatalf("GET / Location = %q, want /ui/", loc)
	}

	uiRes, err := client.Get(ts.URL + "/ui/")
	if err != nil {
		t.Fatalf("GET /ui/ error = %v", err)
	}
	defer uiRes.Body.Close()
	if uiRes.StatusCode != http.StatusOK {
		t.Fatalf("GET /ui/ status = %d, want %d", uiRes.StatusCode, http.StatusOK)
	}

	healthRes, err := client.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer healthRes.Body.Close()
	if healthRes.StatusCode != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want %d", healthRes.StatusCode, http.StatusOK)
	}
}

func TestChatWebSocket(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws?user_id=user-ws"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	if res != nil {
		res.Body.Close()
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"message": "hello over ws"}); err != nil {
		t.Fatalf("write error = %v", err)
	}

	var turn chat.TurnResult
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&turn); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if turn.SessionID == "" {
		t.Fatalf("ws turn missing session id: %+v", turn)
	}
	if !strings.HasPrefix(turn.Reply, "echo: ") {
		t.Fatalf("ws reply = %q, want echoed text", turn.Reply)
	}

	if err := conn.WriteJSON(map[string]string{"message": "second turn"}); err != nil {
		t.Fatalf("second write error = %v", err)
	}
	var second chat.TurnResult
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("second read error = %v", err)
	}
	if second.SessionID != turn.SessionID {
		t.Fatalf("session id changed across turns: %q then %q", turn.SessionID, second.SessionID)
	}
}

func TestWSRequiresUserID(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/v1/chat/ws")
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}
