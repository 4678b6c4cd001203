// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine ties the connection, the session state machine and the
// creation timer together behind one event loop.
//
// Socket frames, status changes, timer expiries and user intents are all
// queued onto a single FIFO channel. Run drains it and applies each event to
// completion before taking the next, so the state machine never sees
// concurrent calls. After every event the current snapshot is published to
// subscribers.
//
// # Key Types
//
//   - Engine: The event loop with its intent methods
//   - Transport: What the engine needs from a connection (conn.Manager)
//
// # Usage
//
//	mgr := conn.NewManager(cfg.Server.URL)
//	eng := engine.New(mgr)
//	go eng.Run(ctx)
//	eng.Connect()
//
//	updates, cancel := eng.Subscribe()
//	defer cancel()
//	for state := range updates {
//	    render(state)
//	}
package engine

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/agentdesk/internal/clock"
	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/pending"
	"github.com/jeranaias/agentdesk/internal/protocol"
	"github.com/jeranaias/agentdesk/internal/session"
)

// Transport is the connection the engine drives.
type Transport interface {
	Connect()
	Disconnect()
	Send(cmd protocol.Command) bool
	Status() model.ConnectionStatus
	SetHandlers(onStatus func(model.ConnectionStatus), onMessage func([]byte))
}

// DefaultQueueSize is the capacity of the event channel.
const DefaultQueueSize = 256

// maxFrameLog caps how much of a frame WithFrameLog writes.
const maxFrameLog = 512

// =============================================================================
// ENGINE
// =============================================================================

// Engine serializes all state changes through Run.
type Engine struct {
	transport Transport
	machine   *session.Machine
	pending   *pending.Timer
	clock     clock.Clock

	creationTimeout time.Duration
	queueSize       int
	logFrames       bool

	events  chan func()
	done    chan struct{}
	running atomic.Bool

	snapshot atomic.Pointer[session.State]

	subMu   sync.Mutex
	subs    map[int]chan *session.State
	nextSub int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the clock for timestamps and the creation deadline.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithCreationTimeout sets how long a create_session may stay unanswered.
func WithCreationTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.creationTimeout = d
	}
}

// WithFrameLog logs every inbound frame, clipped to maxFrameLog bytes.
func WithFrameLog(on bool) EngineOption {
	return func(e *Engine) {
		e.logFrames = on
	}
}

// WithQueueSize sets the event channel capacity.
func WithQueueSize(n int) EngineOption {
	return func(e *Engine) {
		e.queueSize = n
	}
}

// New creates an Engine on top of t and installs its handlers on t.
func New(t Transport, opts ...EngineOption) *Engine {
	e := &Engine{
		transport:       t,
		clock:           clock.Real(),
		creationTimeout: pending.DefaultTimeout,
		queueSize:       DefaultQueueSize,
		done:            make(chan struct{}),
		subs:            make(map[int]chan *session.State),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.queueSize <= 0 {
		e.queueSize = DefaultQueueSize
	}
	e.events = make(chan func(), e.queueSize)
	e.machine = session.NewMachine(session.WithClock(e.clock))
	e.pending = pending.NewTimer(e.clock, e.creationTimeout, func(attempt uint64) {
		e.enqueue(func() { e.creationExpired(attempt) })
	})
	e.snapshot.Store(e.machine.State())

	t.SetHandlers(
		func(s model.ConnectionStatus) { e.enqueue(func() { e.statusChanged(s) }) },
		func(frame []byte) { e.enqueue(func() { e.frameReceived(frame) }) },
	)
	return e
}

// Run processes events until ctx is cancelled. It disconnects the transport
// and cancels any pending creation on the way out.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	defer func() {
		close(e.done)
		e.pending.Cancel()
		e.transport.Disconnect()
		e.closeSubscribers()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.events:
			fn()
			e.publish()
		}
	}
}

// enqueue hands fn to the loop. It drops fn once Run has returned.
func (e *Engine) enqueue(fn func()) {
	select {
	case e.events <- fn:
	case <-e.done:
	}
}

// Sync blocks until every event queued before the call has been applied.
func (e *Engine) Sync(ctx context.Context) error {
	reached := make(chan struct{})
	e.enqueue(func() { close(reached) })
	select {
	case <-reached:
		return nil
	case <-e.done:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Snapshot returns the latest published state.
func (e *Engine) Snapshot() *session.State {
	return e.snapshot.Load()
}

// Subscribe returns a channel that always holds the newest snapshot not yet
// read. Intermediate snapshots may be skipped. The channel is closed when
// cancel is called or Run returns.
func (e *Engine) Subscribe() (<-chan *session.State, func()) {
	ch := make(chan *session.State, 1)
	ch <- e.Snapshot()

	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.subMu.Lock()
			defer e.subMu.Unlock()
			if _, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

func (e *Engine) publish() {
	st := e.machine.State()
	if st == e.snapshot.Load() {
		return
	}
	e.snapshot.Store(st)

	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

func (e *Engine) closeSubscribers() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}

// =============================================================================
// TRANSPORT EVENTS
// =============================================================================

func (e *Engine) statusChanged(status model.ConnectionStatus) {
	prev := e.machine.State().Status
	e.machine.SetConnectionStatus(status)
	if status == model.StatusConnected && prev != model.StatusConnected {
		e.refreshCatalog()
	}
}

func (e *Engine) refreshCatalog() {
	if !e.transport.Send(protocol.ListAgents{}) || !e.transport.Send(protocol.ListSessions{}) {
		log.Printf("CATALOG_REFRESH_FAILED | status=%s", e.transport.Status())
	}
}

func (e *Engine) frameReceived(frame []byte) {
	if e.logFrames {
		shown := frame
		if len(shown) > maxFrameLog {
			shown = shown[:maxFrameLog]
		}
		log.Printf("FRAME_IN | bytes=%d data=%s", len(frame), shown)
	}

	msg, err := protocol.Decode(frame)
	if err != nil {
		if protocol.IsUnknownType(err) {
			log.Printf("FRAME_IGNORED | error=%v", err)
		} else {
			log.Printf("FRAME_DROPPED | error=%v", err)
		}
		return
	}

	switch m := msg.(type) {
	case protocol.SessionCreated:
		e.pending.Cancel()
		log.Printf("SESSION_CREATED | session=%s agent=%s", m.SessionID, m.AgentName)
	case protocol.Error:
		e.pending.Cancel()
		log.Printf("SERVER_ERROR | message=%q", m.Message)
	case protocol.SessionClosed:
		log.Printf("SESSION_CLOSED | session=%s", m.SessionID)
	}
	e.machine.Apply(msg)
}

func (e *Engine) creationExpired(attempt uint64) {
	if e.machine.CreationTimedOut(attempt) {
		log.Printf("SESSION_CREATE_TIMEOUT | attempt=%d timeout=%s", attempt, e.pending.Timeout())
	}
}
