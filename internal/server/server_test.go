// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/agentdesk/internal/fsapi"
	"github.com/jeranaias/agentdesk/internal/mockagent"
	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/protocol"
)

func newTestServer(t *testing.T, opts ...mockagent.OrchestratorOption) (*Server, *httptest.Server) {
	t.Helper()
	orch := mockagent.New(opts...)
	s := NewServer("", orch, fsapi.NewLocal(fsapi.WithRoots(t.TempDir())))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.ws.CloseAll()
		ts.Close()
		orch.Close()
	})
	return s, ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

// =============================================================================
// ROUTE TESTS
// =============================================================================

func TestNewServer_DefaultAddr(t *testing.T) {
	orch := mockagent.New()
	defer orch.Close()

	if got := NewServer("", orch, nil).Addr(); got != DefaultAddr {
		t.Errorf("Addr() = %q, want %q", got, DefaultAddr)
	}
	if got := NewServer(":9000", orch, nil).Addr(); got != ":9000" {
		t.Errorf("Addr() = %q, want :9000", got)
	}
}

func TestHandleHealth(t *testing.T) {
	_, ts := newTestServer(t)

	var health HealthResponse
	resp := getJSON(t, ts.URL+"/health", &health)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if health.Status != "ok" {
		t.Errorf("Status = %q, want ok", health.Status)
	}
	if health.Version != Version {
		t.Errorf("Version = %q, want %q", health.Version, Version)
	}
	if health.Agents != 2 {
		t.Errorf("Agents = %d, want 2 enabled", health.Agents)
	}
	if health.Sessions != 0 {
		t.Errorf("Sessions = %d, want 0", health.Sessions)
	}
}

func TestHandleHealth_DegradedWithoutAgents(t *testing.T) {
	_, ts := newTestServer(t, mockagent.WithAgents([]model.AgentInfo{
		{ID: "off", DisplayName: "Off", Enabled: false},
	}))

	var health HealthResponse
	getJSON(t, ts.URL+"/health", &health)
	if health.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", health.Status)
	}
}

func TestHandleAgentsAndSessions(t *testing.T) {
	s, ts := newTestServer(t)

	var agents struct {
		Agents []model.AgentInfo `json:"agents"`
	}
	getJSON(t, ts.URL+"/api/agents", &agents)
	if len(agents.Agents) != len(mockagent.DefaultAgents()) {
		t.Errorf("got %d agents, want %d", len(agents.Agents), len(mockagent.DefaultAgents()))
	}

	if _, err := s.orch.CreateSession("codex", "/tmp", nil); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	var sessions struct {
		Sessions []protocol.SessionEntry `json:"sessions"`
	}
	getJSON(t, ts.URL+"/api/sessions", &sessions)
	if len(sessions.Sessions) != 1 || sessions.Sessions[0].AgentName != "Codex" {
		t.Errorf("sessions = %+v, want one Codex session", sessions.Sessions)
	}
}

func TestFilesystemRoutesMounted(t *testing.T) {
	_, ts := newTestServer(t)

	var status fsapi.PathStatus
	resp := getJSON(t, ts.URL+"/api/fs/exists/definitely/not/here", &status)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if status.Exists {
		t.Error("Exists = true for a missing path")
	}
}

func TestWebSocketThroughMiddleware(t *testing.T) {
	s, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close()

	frame, _ := protocol.Encode(protocol.ListAgents{})
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Type() != protocol.TypeAgentList {
		t.Errorf("Type() = %q, want agent_list", msg.Type())
	}
	if s.ws.Clients() != 1 {
		t.Errorf("Clients() = %d, want 1", s.ws.Clients())
	}
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestServeAndShutdown(t *testing.T) {
	orch := mockagent.New()
	defer orch.Close()
	s := NewServer("127.0.0.1:0", orch, nil)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve(l) }()

	var health HealthResponse
	getJSON(t, "http://"+l.Addr().String()+"/health", &health)
	if health.Status != "ok" {
		t.Errorf("Status = %q, want ok", health.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestShutdown_NotStarted(t *testing.T) {
	orch := mockagent.New()
	defer orch.Close()
	if err := NewServer("", orch, nil).Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v, want nil", err)
	}
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeadersMiddleware()(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware(DefaultCORSConfig())(okHandler())

	req := httptest.NewRequest("GET", "/api/fs/cwd", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q, want the request origin", got)
	}

	req = httptest.NewRequest("GET", "/api/fs/cwd", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q for a foreign origin, want empty", got)
	}

	req = httptest.NewRequest("OPTIONS", "/api/fs/cwd", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
}

func TestCORSConfig_Wildcards(t *testing.T) {
	c := &CORSConfig{AllowedOrigins: []string{"*.example.com"}}
	tests := []struct {
		origin string
		want   bool
	}{
		{"https://app.example.com", true},
		{"https://example.org", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.isOriginAllowed(tt.origin); got != tt.want {
			t.Errorf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("burst of 2 should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("third request in the same instant should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("a different IP has its own bucket")
	}

	now = now.Add(time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Error("bucket should refill after one second")
	}

	now = now.Add(time.Hour)
	rl.Allow("10.0.0.3")
	if got := rl.Tracked(); got != 1 {
		t.Errorf("Tracked() = %d after idle eviction, want 1", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(NewRateLimiter(0.001, 1))(okHandler())

	req := httptest.NewRequest("GET", "/health", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()
	RecoveryMiddleware()(panicky).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Chain(mark("a"), mark("b"), mark("c"))(okHandler()).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if got := strings.Join(order, ","); got != "a,b,c" {
		t.Errorf("order = %s, want a,b,c", got)
	}
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	var buf strings.Builder
	logger := log.New(&buf, "", 0)

	teapot := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	LoggingMiddleware(logger)(teapot).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/brew", nil))

	if !strings.Contains(buf.String(), "GET /brew | 418") {
		t.Errorf("log line = %q, want method, path and status", buf.String())
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.5:4000", "", "203.0.113.5"},
		{"spoofed header from remote peer", "203.0.113.5:4000", "1.2.3.4", "203.0.113.5"},
		{"forwarded by local proxy", "127.0.0.1:4000", "198.51.100.7, 10.0.0.1", "198.51.100.7"},
		{"garbage header", "127.0.0.1:4000", "not-an-ip", "127.0.0.1"},
		{"no port", "198.51.100.9", "", "198.51.100.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
