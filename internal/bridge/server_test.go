package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/mtavish/conclave/internal/mailbox"
	"github.com/mtavish/conclave/internal/roster"
	"github.com/mtavish/conclave/internal/session"
	"github.com/mtavish/conclave/internal/tools"
)

func newToolServer(t *testing.T, agentID int, agentName string) *tools.Server {
	t.Helper()
	handle := session.NewHandle(t.TempDir(), "apollo")
	store := session.NewStore(handle)
	if err := store.Create(session.Session{Name: "apollo", AgentCount: 2}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	r := &roster.Roster{Agents: []roster.AgentDefinition{
		{ID: 1, Name: "builder", Role: "impl"},
		{ID: 2, Name: "reviewer", Role: "review"},
	}}
	if err := store.WriteRoster(r); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	if err := store.SeedStates(r.Agents); err != nil {
		t.Fatalf("seed states: %v", err)
	}
	return tools.NewServer(store, mailbox.New(handle), agentID, agentName)
}

func startBridge(t *testing.T, toolServer *tools.Server) *Server {
	t.Helper()
	settings := Settings{Enabled: true, Host: "127.0.0.1", Port: 0}
	settings.normalize()
	server := NewServer(settings, toolServer)
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("start bridge: %v", err)
	}
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })
	return server
}

func postJSON(t *testing.T, url string, payload any) (*http.Response, tools.Result) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &body)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var result tools.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return resp, result
}

func TestStartDisabled(t *testing.T) {
	server := NewServer(Settings{Enabled: false}, newToolServer(t, 1, "builder"))
	if err := server.Start(context.Background()); err != ErrDisabled {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := startBridge(t, newToolServer(t, 1, "builder"))
	resp, err := http.Get(server.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != string(StatusReady) {
		t.Fatalf("expected ready, got %s", health.Status)
	}
}

func TestToolEndpointsRequirePost(t *testing.T) {
	server := startBridge(t, newToolServer(t, 1, "builder"))
	resp, err := http.Get(server.BaseURL() + "/tools/list_agents")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestUpdateStatusOverBridge(t *testing.T) {
	server := startBridge(t, newToolServer(t, 1, "builder"))
	resp, result := postJSON(t, server.BaseURL()+"/tools/update_status", map[string]string{
		"status":      "blocked",
		"currentTask": "waiting on schema",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !result.OK {
		t.Fatalf("update failed: %+v", result)
	}

	_, listing := postJSON(t, server.BaseURL()+"/tools/list_agents", nil)
	if !listing.OK {
		t.Fatalf("list failed: %+v", listing)
	}
	if !bytes.Contains([]byte(listing.Message), []byte("blocked")) {
		t.Fatalf("listing should show blocked:\n%s", listing.Message)
	}
}

func TestToolFailureStaysHTTP200(t *testing.T) {
	server := startBridge(t, newToolServer(t, 1, "builder"))
	resp, result := postJSON(t, server.BaseURL()+"/tools/send_query", map[string]string{
		"to":      "ghost",
		"message": "boo",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tool failures are valid protocol answers, got %d", resp.StatusCode)
	}
	if result.OK || result.Kind != tools.KindRecipientNotFound {
		t.Fatalf("expected recipient_not_found, got %+v", result)
	}
}

func TestEmptyBodyIsAValidCall(t *testing.T) {
	server := startBridge(t, newToolServer(t, 1, "builder"))
	resp, result := postJSON(t, server.BaseURL()+"/tools/check_queries", nil)
	if resp.StatusCode != http.StatusOK || !result.OK {
		t.Fatalf("empty-body call: status=%d result=%+v", resp.StatusCode, result)
	}
	if result.Message != "No pending queries." {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestInvalidJSONRejected(t *testing.T) {
	server := startBridge(t, newToolServer(t, 1, "builder"))
	resp, err := http.Post(server.BaseURL()+"/tools/update_status", "application/json",
		bytes.NewBufferString("{status:"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestOversizedPayloadRejected(t *testing.T) {
	toolServer := newToolServer(t, 1, "builder")
	settings := Settings{Enabled: true, Host: "127.0.0.1", Port: 0, MaxBodyBytes: 64}
	settings.normalize()
	server := NewServer(settings, toolServer)
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer server.Shutdown(context.Background())

	huge := fmt.Sprintf(`{"summary": %q}`, bytes.Repeat([]byte("x"), 1024))
	resp, err := http.Post(server.BaseURL()+"/tools/mark_complete", "application/json",
		bytes.NewBufferString(huge))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	server := startBridge(t, newToolServer(t, 1, "builder"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown must be a no-op: %v", err)
	}
	if server.Addr() != "" {
		t.Fatalf("address must clear after shutdown")
	}
}
