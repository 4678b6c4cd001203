// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conn

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/agentdesk/internal/clock"
	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/protocol"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options tunes a Manager.
type Options struct {
	// ReconnectDelay is the fixed wait before each automatic redial.
	ReconnectDelay time.Duration

	// MaxReconnectAttempts bounds automatic redials between successful opens.
	MaxReconnectAttempts int

	// HandshakeTimeout bounds one dial.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds one frame write.
	WriteTimeout time.Duration

	// PingInterval enables keepalive pings when positive.
	PingInterval time.Duration

	// PongWait is the read deadline extended by every pong. Only used when
	// pings are enabled.
	PongWait time.Duration

	// ReadLimit caps the size of one inbound frame in bytes.
	ReadLimit int64
}

// DefaultOptions returns the standard connection settings.
func DefaultOptions() Options {
	return Options{
		ReconnectDelay:       3 * time.Second,
		MaxReconnectAttempts: 5,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		PingInterval:         30 * time.Second,
		PongWait:             60 * time.Second,
		ReadLimit:            4 << 20,
	}
}

func (o *Options) setDefaults() {
	d := DefaultOptions()
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = d.ReconnectDelay
	}
	if o.MaxReconnectAttempts < 0 {
		o.MaxReconnectAttempts = 0
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PingInterval > 0 && o.PongWait <= o.PingInterval {
		o.PongWait = 2 * o.PingInterval
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = d.ReadLimit
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithOptions replaces the default Options.
func WithOptions(opts Options) ManagerOption {
	return func(m *Manager) {
		m.opts = opts
	}
}

// WithClock sets the clock that schedules redials and pings.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithDialer sets the WebSocket dialer.
func WithDialer(d *websocket.Dialer) ManagerOption {
	return func(m *Manager) {
		m.dialer = d
	}
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager maintains one WebSocket connection. It is safe for concurrent use.
type Manager struct {
	url    string
	opts   Options
	clock  clock.Clock
	dialer *websocket.Dialer

	mu        sync.Mutex
	status    model.ConnectionStatus
	link      *link
	attempts  int
	gen       uint64 // bumped by Connect and Disconnect; stale work compares it
	retry     *clock.Timer
	onStatus  func(model.ConnectionStatus)
	onMessage func([]byte)

	// Ordered notification queue drained by dispatch.
	queue  []func()
	wake   chan struct{}
	closed chan struct{}
	once   sync.Once

	// writeMu serializes frame and ping writes.
	writeMu sync.Mutex
}

// link is one open socket with its shutdown signal.
type link struct {
	ws   *websocket.Conn
	done chan struct{}
	once sync.Once
}

func (l *link) close() {
	l.once.Do(func() {
		close(l.done)
		l.ws.Close()
	})
}

// NewManager creates a disconnected Manager for url. Call Close when done.
func NewManager(url string, opts ...ManagerOption) *Manager {
	m := &Manager{
		url:    url,
		opts:   DefaultOptions(),
		clock:  clock.Real(),
		status: model.StatusDisconnected,
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.opts.setDefaults()
	if m.dialer == nil {
		m.dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: m.opts.HandshakeTimeout,
		}
	}
	go m.dispatch()
	return m
}

// SetHandlers installs the status and frame callbacks. Either may be nil.
func (m *Manager) SetHandlers(onStatus func(model.ConnectionStatus), onMessage func([]byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = onStatus
	m.onMessage = onMessage
}

// URL returns the orchestrator endpoint.
func (m *Manager) URL() string {
	return m.url
}

// Status returns the current connection status.
func (m *Manager) Status() model.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Attempts returns the number of automatic redials since the last open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect starts dialing. It does nothing while connecting or connected.
// An explicit Connect restores the full reconnect budget.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == model.StatusConnecting || m.status == model.StatusConnected {
		return
	}
	m.stopRetryLocked()
	m.attempts = 0
	m.gen++
	m.startDialLocked(m.gen)
}

// Disconnect closes the socket and stops automatic reconnection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.attempts = m.opts.MaxReconnectAttempts
	m.gen++
	m.stopRetryLocked()
	l := m.link
	m.link = nil
	m.setStatusLocked(model.StatusDisconnected)
	m.mu.Unlock()

	if l != nil {
		m.writeMu.Lock()
		l.ws.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
		l.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"))
		m.writeMu.Unlock()
		l.close()
		log.Printf("WS_DISCONNECTED | url=%s reason=client", m.url)
	}
}

// Close disconnects and stops delivering notifications.
func (m *Manager) Close() {
	m.Disconnect()
	m.once.Do(func() { close(m.closed) })
}

// Send encodes cmd and writes it as one text frame. It returns false when
// the socket is not open or the write fails. Nothing is buffered or retried.
func (m *Manager) Send(cmd protocol.Command) bool {
	data, err := protocol.Encode(cmd)
	if err != nil {
		log.Printf("WS_SEND_FAILED | type=%s error=%v", cmd.Type(), err)
		return false
	}

	m.mu.Lock()
	l := m.link
	open := m.status == model.StatusConnected && l != nil
	m.mu.Unlock()
	if !open {
		return false
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	l.ws.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
	if err := l.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("WS_SEND_FAILED | type=%s error=%v", cmd.Type(), err)
		return false
	}
	return true
}

// =============================================================================
// DIAL AND RECONNECT
// =============================================================================

func (m *Manager) startDialLocked(gen uint64) {
	m.setStatusLocked(model.StatusConnecting)
	go m.dial(gen)
}

func (m *Manager) dial(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.HandshakeTimeout)
	defer cancel()

	ws, _, err := m.dialer.DialContext(ctx, m.url, nil)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		// Disconnected or reconnected while dialing.
		if ws != nil {
			ws.Close()
		}
		return
	}

	if err != nil {
		log.Printf("WS_DIAL_FAILED | url=%s attempt=%d error=%v", m.url, m.attempts, err)
		m.setStatusLocked(model.StatusError)
		m.setStatusLocked(model.StatusDisconnected)
		m.scheduleRetryLocked(gen)
		return
	}

	ws.SetReadLimit(m.opts.ReadLimit)
	l := &link{ws: ws, done: make(chan struct{})}
	m.link = l
	m.attempts = 0
	m.setStatusLocked(model.StatusConnected)
	log.Printf("WS_CONNECTED | url=%s", m.url)

	go m.readLoop(l, gen)
	if m.opts.PingInterval > 0 {
		go m.pingLoop(l)
	}
}

// scheduleRetryLocked arms the next redial if the budget allows.
func (m *Manager) scheduleRetryLocked(gen uint64) {
	if m.attempts >= m.opts.MaxReconnectAttempts {
		log.Printf("WS_RECONNECT_EXHAUSTED | url=%s attempts=%d", m.url, m.attempts)
		return
	}
	m.attempts++
	log.Printf("WS_RECONNECT_SCHEDULED | url=%s attempt=%d delay=%s", m.url, m.attempts, m.opts.ReconnectDelay)
	m.retry = m.clock.AfterFunc(m.opts.ReconnectDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.gen || m.status != model.StatusDisconnected {
			return
		}
		m.retry = nil
		m.startDialLocked(gen)
	})
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

// =============================================================================
// READ AND KEEPALIVE
// =============================================================================

func (m *Manager) readLoop(l *link, gen uint64) {
	if m.opts.PingInterval > 0 {
		// Socket deadlines are wall clock, independent of the injected clock.
		l.ws.SetReadDeadline(time.Now().Add(m.opts.PongWait))
		l.ws.SetPongHandler(func(string) error {
			return l.ws.SetReadDeadline(time.Now().Add(m.opts.PongWait))
		})
	}

	for {
		_, data, err := l.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WS_READ_ERROR | url=%s error=%v", m.url, err)
			}
			m.linkClosed(l, gen)
			return
		}

		m.mu.Lock()
		if m.link == l {
			m.emitLocked(func() {
				if fn := m.messageHandler(); fn != nil {
					fn(data)
				}
			})
		}
		m.mu.Unlock()
	}
}

func (m *Manager) pingLoop(l *link) {
	ticker := m.clock.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			m.writeMu.Lock()
			err := l.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.opts.WriteTimeout))
			m.writeMu.Unlock()
			if err != nil {
				log.Printf("WS_PING_FAILED | url=%s error=%v", m.url, err)
				l.close()
				return
			}
		}
	}
}

// linkClosed handles a socket that closed on its own.
func (m *Manager) linkClosed(l *link, gen uint64) {
	l.close()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.link != l || gen != m.gen {
		return
	}
	m.link = nil
	log.Printf("WS_CLOSED | url=%s", m.url)
	m.setStatusLocked(model.StatusDisconnected)
	m.scheduleRetryLocked(gen)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (m *Manager) setStatusLocked(status model.ConnectionStatus) {
	if m.status == status {
		return
	}
	m.status = status
	m.emitLocked(func() {
		m.mu.Lock()
		fn := m.onStatus
		m.mu.Unlock()
		if fn != nil {
			fn(status)
		}
	})
}

func (m *Manager) messageHandler() func([]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onMessage
}

// emitLocked queues a notification. The queue keeps the order in which
// state changed; dispatch runs it without holding mu.
func (m *Manager) emitLocked(fn func()) {
	m.queue = append(m.queue, fn)
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) dispatch() {
	for {
		select {
		case <-m.closed:
			return
		case <-m.wake:
		}
		m.mu.Lock()
		batch := m.queue
		m.queue = nil
		m.mu.Unlock()
		for _, fn := range batch {
			fn()
		}
	}
}
