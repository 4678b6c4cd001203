// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conn

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/agentdesk/internal/clock"
	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/protocol"
)

const waitTimeout = 5 * time.Second

// =============================================================================
// TEST HARNESS
// =============================================================================

type wsServer struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{conns: make(chan *websocket.Conn, 8)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- ws
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-s.conns:
		t.Cleanup(func() { ws.Close() })
		return ws
	case <-time.After(waitTimeout):
		t.Fatal("server never accepted a connection")
		return nil
	}
}

type harness struct {
	mgr      *Manager
	clock    *clock.FakeClock
	statuses chan model.ConnectionStatus
	frames   chan string
}

func testOptions() Options {
	return Options{
		ReconnectDelay:       3 * time.Second,
		MaxReconnectAttempts: 2,
		HandshakeTimeout:     2 * time.Second,
		WriteTimeout:         2 * time.Second,
	}
}

func newHarness(t *testing.T, url string, opts Options) *harness {
	t.Helper()
	h := &harness{
		clock:    clock.Fake(time.Unix(0, 0)),
		statuses: make(chan model.ConnectionStatus, 64),
		frames:   make(chan string, 64),
	}
	h.mgr = NewManager(url, WithOptions(opts), WithClock(h.clock))
	h.mgr.SetHandlers(
		func(s model.ConnectionStatus) { h.statuses <- s },
		func(b []byte) { h.frames <- string(b) },
	)
	t.Cleanup(h.mgr.Close)
	return h
}

func (h *harness) expect(t *testing.T, want ...model.ConnectionStatus) {
	t.Helper()
	for _, w := range want {
		select {
		case got := <-h.statuses:
			require.Equal(t, w, got, "status sequence")
		case <-time.After(waitTimeout):
			t.Fatalf("timed out waiting for status %s", w)
		}
	}
}

func (h *harness) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case s := <-h.statuses:
		t.Fatalf("unexpected status %s", s)
	case <-time.After(50 * time.Millisecond):
	}
}

// =============================================================================
// CONNECT AND SEND TESTS
// =============================================================================

func TestManager_ConnectAndSend(t *testing.T) {
	srv := newWSServer(t)
	h := newHarness(t, srv.url(), testOptions())

	assert.False(t, h.mgr.Send(protocol.ListAgents{}), "send before connect")

	h.mgr.Connect()
	h.expect(t, model.StatusConnecting, model.StatusConnected)
	ws := srv.accept(t)
	assert.Equal(t, model.StatusConnected, h.mgr.Status())

	require.True(t, h.mgr.Send(protocol.SendPrompt{SessionID: "s1", Prompt: "hi"}))
	ws.SetReadDeadline(time.Now().Add(waitTimeout))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"send_prompt","session_id":"s1","prompt":"hi"}`, string(data))
}

func TestManager_ConnectIsIdempotent(t *testing.T) {
	srv := newWSServer(t)
	h := newHarness(t, srv.url(), testOptions())

	h.mgr.Connect()
	h.mgr.Connect()
	h.expect(t, model.StatusConnecting, model.StatusConnected)
	srv.accept(t)
	h.mgr.Connect()

	h.expectQuiet(t)
	select {
	case <-srv.conns:
		t.Fatal("second socket opened")
	default:
	}
}

func TestManager_FramesArriveInOrder(t *testing.T) {
	srv := newWSServer(t)
	h := newHarness(t, srv.url(), testOptions())
	h.mgr.Connect()
	h.expect(t, model.StatusConnecting, model.StatusConnected)
	ws := srv.accept(t)

	want := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}
	for _, f := range want {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(f)))
	}
	for _, f := range want {
		select {
		case got := <-h.frames:
			assert.Equal(t, f, got)
		case <-time.After(waitTimeout):
			t.Fatal("frame not delivered")
		}
	}
}

// =============================================================================
// RECONNECT TESTS
// =============================================================================

func TestManager_ReconnectsAfterServerClose(t *testing.T) {
	srv := newWSServer(t)
	h := newHarness(t, srv.url(), testOptions())
	h.mgr.Connect()
	h.expect(t, model.StatusConnecting, model.StatusConnected)
	ws := srv.accept(t)

	ws.Close()
	h.expect(t, model.StatusDisconnected)
	assert.False(t, h.mgr.Send(protocol.ListSessions{}))
	assert.Equal(t, 1, h.mgr.Attempts())

	h.clock.WaitForTimers(1)
	h.clock.Advance(2 * time.Second)
	h.expectQuiet(t)

	h.clock.Advance(time.Second)
	h.expect(t, model.StatusConnecting, model.StatusConnected)
	srv.accept(t)
	assert.Equal(t, 0, h.mgr.Attempts(), "open resets the budget")
}

func TestManager_DialFailureBudget(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	h := newHarness(t, url, testOptions())
	h.mgr.Connect()
	h.expect(t, model.StatusConnecting, model.StatusError, model.StatusDisconnected)

	for i := 0; i < 2; i++ {
		h.clock.WaitForTimers(1)
		h.clock.Advance(3 * time.Second)
		h.expect(t, model.StatusConnecting, model.StatusError, model.StatusDisconnected)
	}

	assert.Equal(t, 2, h.mgr.Attempts())
	assert.Equal(t, 0, h.clock.PendingCount(), "budget exhausted")
	h.clock.Advance(time.Minute)
	h.expectQuiet(t)

	// An explicit Connect gets a fresh budget.
	h.mgr.Connect()
	h.expect(t, model.StatusConnecting, model.StatusError, model.StatusDisconnected)
	assert.Equal(t, 1, h.mgr.Attempts())
}

func TestManager_DisconnectStopsReconnect(t *testing.T) {
	srv := newWSServer(t)
	h := newHarness(t, srv.url(), testOptions())
	h.mgr.Connect()
	h.expect(t, model.StatusConnecting, model.StatusConnected)
	ws := srv.accept(t)

	ws.Close()
	h.expect(t, model.StatusDisconnected)
	h.clock.WaitForTimers(1)

	h.mgr.Disconnect()
	assert.Equal(t, 0, h.clock.PendingCount())
	h.clock.Advance(time.Minute)
	h.expectQuiet(t)
	assert.Equal(t, model.StatusDisconnected, h.mgr.Status())
}

func TestManager_DisconnectWhileConnected(t *testing.T) {
	srv := newWSServer(t)
	h := newHarness(t, srv.url(), testOptions())
	h.mgr.Connect()
	h.expect(t, model.StatusConnecting, model.StatusConnected)
	ws := srv.accept(t)

	h.mgr.Disconnect()
	h.expect(t, model.StatusDisconnected)
	assert.False(t, h.mgr.Send(protocol.ListAgents{}))

	ws.SetReadDeadline(time.Now().Add(waitTimeout))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	h.expectQuiet(t)
	assert.Equal(t, 0, h.clock.PendingCount())
}

// =============================================================================
// KEEPALIVE TESTS
// =============================================================================

func TestManager_SendsPings(t *testing.T) {
	srv := newWSServer(t)
	opts := testOptions()
	opts.PingInterval = time.Second
	h := newHarness(t, srv.url(), opts)
	h.mgr.Connect()
	h.expect(t, model.StatusConnecting, model.StatusConnected)
	ws := srv.accept(t)

	pings := make(chan struct{}, 4)
	ws.SetPingHandler(func(string) error {
		pings <- struct{}{}
		return nil
	})
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.clock.WaitForTimers(1)
	h.clock.Advance(time.Second)
	select {
	case <-pings:
	case <-time.After(waitTimeout):
		t.Fatal("no ping received")
	}
}

func TestOptions_Defaults(t *testing.T) {
	opts := Options{PingInterval: 10 * time.Second, PongWait: time.Second}
	opts.setDefaults()
	assert.Equal(t, 3*time.Second, opts.ReconnectDelay)
	assert.Equal(t, 20*time.Second, opts.PongWait)
	assert.Equal(t, int64(4<<20), opts.ReadLimit)
}
