// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockagent

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jeranaias/agentdesk/internal/protocol"
)

// Connection defaults.
const (
	DefaultReadLimit    = 512 * 1024
	DefaultPingInterval = 30 * time.Second
	DefaultPongWait     = 60 * time.Second
	DefaultWriteWait    = 10 * time.Second

	sendBufferSize = 64
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler upgrades requests to WebSocket and serves the protocol.
type Handler struct {
	orch     *Orchestrator
	upgrader websocket.Upgrader

	readLimit    int64
	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration

	clients atomic.Int64

	mu   sync.Mutex
	live map[*client]struct{}
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithReadLimit caps the size of a client frame.
func WithReadLimit(n int64) HandlerOption {
	return func(h *Handler) {
		h.readLimit = n
	}
}

// WithKeepalive sets the ping interval and how long to wait for a pong.
func WithKeepalive(ping, pong time.Duration) HandlerOption {
	return func(h *Handler) {
		h.pingInterval = ping
		h.pongWait = pong
	}
}

// NewHandler creates a Handler serving orch.
func NewHandler(orch *Orchestrator, opts ...HandlerOption) *Handler {
	h := &Handler{
		orch: orch,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readLimit:    DefaultReadLimit,
		pingInterval: DefaultPingInterval,
		pongWait:     DefaultPongWait,
		writeWait:    DefaultWriteWait,
		live:         make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Clients returns the number of connected clients.
func (h *Handler) Clients() int {
	return int(h.clients.Load())
}

// CloseAll sends a close frame to every connected client.
func (h *Handler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.live {
		c.shutdown()
	}
}

// ServeHTTP blocks for the lifetime of the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("MOCK_WS_UPGRADE_FAILED | remote=%s error=%v", r.RemoteAddr, err)
		return
	}

	c := &client{
		conn: ws,
		send: make(chan protocol.ServerMessage, sendBufferSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.live[c] = struct{}{}
	h.mu.Unlock()
	log.Printf("MOCK_WS_CONNECTED | remote=%s clients=%d", r.RemoteAddr, h.clients.Add(1))

	events, unsubscribe := h.orch.Subscribe()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.writePump(c)
	}()
	go func() {
		defer wg.Done()
		for msg := range events {
			if !c.enqueue(msg) {
				return
			}
		}
	}()

	h.readPump(c)

	unsubscribe()
	c.shutdown()
	wg.Wait()

	h.mu.Lock()
	delete(h.live, c)
	h.mu.Unlock()
	log.Printf("MOCK_WS_DISCONNECTED | remote=%s clients=%d", r.RemoteAddr, h.clients.Add(-1))
}

// =============================================================================
// CLIENT PUMPS
// =============================================================================

type client struct {
	conn     *websocket.Conn
	send     chan protocol.ServerMessage
	done     chan struct{}
	doneOnce sync.Once
}

func (c *client) shutdown() {
	c.doneOnce.Do(func() { close(c.done) })
}

// enqueue blocks until the writer takes msg or the client goes away.
func (c *client) enqueue(msg protocol.ServerMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	}
}

func (h *Handler) readPump(c *client) {
	defer c.shutdown()

	c.conn.SetReadLimit(h.readLimit)
	c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("MOCK_WS_READ_ERROR | error=%v", err)
			}
			return
		}
		// Any traffic proves the peer is alive.
		c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
		if kind != websocket.TextMessage {
			continue
		}
		if !h.handle(c, data) {
			return
		}
	}
}

func (h *Handler) writePump(c *client) {
	var tick <-chan time.Time
	if h.pingInterval > 0 {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.send:
			data, err := protocol.EncodeMessage(msg)
			if err != nil {
				log.Printf("MOCK_ENCODE_FAILED | type=%s error=%v", msg.Type(), err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("MOCK_WS_WRITE_ERROR | error=%v", err)
				c.shutdown()
				return
			}

		case <-tick:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

// =============================================================================
// COMMAND DISPATCH
// =============================================================================

// handle answers one client frame. It returns false once the client is gone.
func (h *Handler) handle(c *client, data []byte) bool {
	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		return c.enqueue(protocol.Error{Message: "invalid message: " + err.Error()})
	}

	switch cmd := cmd.(type) {
	case protocol.CreateSession:
		created, err := h.orch.CreateSession(cmd.AgentID, cmd.ProjectPath, cmd.ModelConfig)
		if err != nil {
			return c.enqueue(protocol.Error{Message: "create session failed: " + err.Error()})
		}
		if h.orch.SilentCreate() {
			return true
		}
		return c.enqueue(created)

	case protocol.SendPrompt:
		if _, err := uuid.Parse(cmd.SessionID); err != nil {
			return c.enqueue(protocol.Error{Message: "invalid session_id: " + err.Error()})
		}
		start, err := h.orch.SendPrompt(cmd.SessionID, cmd.Prompt)
		if err != nil {
			return c.enqueue(protocol.Error{Message: "send prompt failed: " + err.Error()})
		}
		ok := c.enqueue(protocol.PromptAccepted{SessionID: cmd.SessionID})
		start()
		return ok

	case protocol.CloseSession:
		if _, err := uuid.Parse(cmd.SessionID); err != nil {
			return c.enqueue(protocol.Error{Message: "invalid session_id: " + err.Error()})
		}
		if err := h.orch.CloseSession(cmd.SessionID); err != nil {
			return c.enqueue(protocol.Error{Message: "close session failed: " + err.Error()})
		}
		return c.enqueue(protocol.SessionClosed{SessionID: cmd.SessionID})

	case protocol.ListAgents:
		return c.enqueue(protocol.AgentList{Agents: h.orch.Agents()})

	case protocol.ListSessions:
		return c.enqueue(protocol.SessionList{Sessions: h.orch.Sessions()})
	}
	return true
}
