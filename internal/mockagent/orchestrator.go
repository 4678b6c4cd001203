// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockagent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/protocol"
)

// Session status strings, as the real orchestrator formats them.
const (
	StatusInitializing = "Initializing"
	StatusReady        = "Ready"
	StatusProcessing   = "Processing"
	StatusIdle         = "Idle"
)

// DefaultEventBuffer is the per-subscriber event queue size.
const DefaultEventBuffer = 256

var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session is busy")
	ErrClosed          = errors.New("orchestrator closed")
)

// DefaultAgents is the registry used when none is configured. The last
// entry is disabled so clients can exercise the rejection path.
func DefaultAgents() []model.AgentInfo {
	return []model.AgentInfo{
		{ID: "claude-acp", DisplayName: "Claude Code ACP", AgentType: "Acp", Enabled: true},
		{ID: "codex", DisplayName: "Codex", AgentType: "Codex", Enabled: true},
		{ID: "opencode", DisplayName: "OpenCode", AgentType: "OpenCode", Enabled: false},
	}
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator holds the agent registry, live sessions and event
// subscribers. It is safe for concurrent use.
type Orchestrator struct {
	agents       []model.AgentInfo
	script       *Script
	stepDelay    time.Duration
	silentCreate bool
	eventBuffer  int

	mu       sync.Mutex
	sessions map[string]*liveSession
	order    []string
	subs     map[int]chan protocol.ServerMessage
	nextSub  int
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type liveSession struct {
	id          string
	agentID     string
	agentName   string
	projectPath string
	status      string
	modelConfig *model.ModelConfig
	cancel      context.CancelFunc
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithAgents replaces the agent registry.
func WithAgents(agents []model.AgentInfo) OrchestratorOption {
	return func(o *Orchestrator) {
		o.agents = append([]model.AgentInfo(nil), agents...)
	}
}

// WithScript sets the reply stream played for each prompt. A script with
// its own step delay overrides WithStepDelay.
func WithScript(s *Script) OrchestratorOption {
	return func(o *Orchestrator) {
		if s != nil {
			o.script = s
		}
	}
}

// WithStepDelay sets the pause between scripted events.
func WithStepDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.stepDelay = d
	}
}

// WithSilentCreate makes the server register sessions without ever
// answering create_session, so clients hit their creation timeout.
func WithSilentCreate(silent bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.silentCreate = silent
	}
}

// WithEventBuffer sets the per-subscriber queue size.
func WithEventBuffer(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

// New creates an Orchestrator with the default agents and script.
func New(opts ...OrchestratorOption) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		agents:      DefaultAgents(),
		script:      DefaultScript(),
		eventBuffer: DefaultEventBuffer,
		sessions:    make(map[string]*liveSession),
		subs:        make(map[int]chan protocol.ServerMessage),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	if d := o.script.StepDelay(); d > 0 {
		o.stepDelay = d
	}
	return o
}

// SilentCreate reports whether create_session replies are suppressed.
func (o *Orchestrator) SilentCreate() bool {
	return o.silentCreate
}

// Close stops every running prompt and closes all subscriptions.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()

	o.mu.Lock()
	for id, ch := range o.subs {
		close(ch)
		delete(o.subs, id)
	}
	o.mu.Unlock()
}

// =============================================================================
// CATALOG
// =============================================================================

// Agents returns a copy of the registry, disabled agents included.
func (o *Orchestrator) Agents() []model.AgentInfo {
	return append([]model.AgentInfo(nil), o.agents...)
}

// Sessions lists live sessions in creation order.
func (o *Orchestrator) Sessions() []protocol.SessionEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]protocol.SessionEntry, 0, len(o.order))
	for _, id := range o.order {
		s := o.sessions[id]
		out = append(out, protocol.SessionEntry{
			SessionID:   s.id,
			AgentName:   s.agentName,
			Status:      s.status,
			ModelConfig: s.modelConfig,
		})
	}
	return out
}

func (o *Orchestrator) findAgent(id string) (model.AgentInfo, bool) {
	for _, a := range o.agents {
		if a.ID == id && a.Enabled {
			return a, true
		}
	}
	return model.AgentInfo{}, false
}

// =============================================================================
// SESSION OPERATIONS
// =============================================================================

// CreateSession registers a new session for an enabled agent.
func (o *Orchestrator) CreateSession(agentID, projectPath string, cfg *model.ModelConfig) (protocol.SessionCreated, error) {
	agent, ok := o.findAgent(agentID)
	if !ok {
		return protocol.SessionCreated{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	if strings.TrimSpace(projectPath) == "" {
		return protocol.SessionCreated{}, errors.New("project path is required")
	}

	s := &liveSession{
		id:          uuid.NewString(),
		agentID:     agent.ID,
		agentName:   agent.Label(),
		projectPath: projectPath,
		status:      StatusReady,
		modelConfig: cfg.Normalized(),
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return protocol.SessionCreated{}, ErrClosed
	}
	o.sessions[s.id] = s
	o.order = append(o.order, s.id)
	o.mu.Unlock()

	log.Printf("MOCK_SESSION_CREATED | session=%s agent=%s path=%s model=%s",
		s.id, s.agentID, projectPath, s.modelConfig)

	return protocol.SessionCreated{
		SessionID:   s.id,
		AgentName:   s.agentName,
		ModelConfig: s.modelConfig,
	}, nil
}

// SendPrompt marks the session as processing and returns a function that
// starts the scripted stream. Callers reply prompt_accepted before calling
// it so the acknowledgement precedes the first event.
func (o *Orchestrator) SendPrompt(sessionID, prompt string) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrClosed
	}
	s, ok := o.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if s.status == StatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, sessionID)
	}

	msgs, err := o.script.Render(sessionID, prompt)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(o.ctx)
	s.status = StatusProcessing
	s.cancel = cancel
	log.Printf("MOCK_PROMPT_ACCEPTED | session=%s prompt_len=%d events=%d", sessionID, len(prompt), len(msgs))

	var once sync.Once
	return func() {
		once.Do(func() {
			o.wg.Add(1)
			go o.stream(ctx, s, msgs)
		})
	}, nil
}

func (o *Orchestrator) stream(ctx context.Context, s *liveSession, msgs []protocol.ServerMessage) {
	defer o.wg.Done()

	for _, msg := range msgs {
		if o.stepDelay > 0 {
			t := time.NewTimer(o.stepDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		} else if ctx.Err() != nil {
			return
		}
		o.publish(msg)
	}

	o.mu.Lock()
	if s.status == StatusProcessing {
		s.status = StatusIdle
	}
	s.cancel = nil
	o.mu.Unlock()
}

// CloseSession stops any running prompt and forgets the session.
func (o *Orchestrator) CloseSession(sessionID string) error {
	o.mu.Lock()
	s, ok := o.sessions[sessionID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(o.sessions, sessionID)
	for i, id := range o.order {
		if id == sessionID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	cancel := s.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	log.Printf("MOCK_SESSION_CLOSED | session=%s", sessionID)
	return nil
}

// =============================================================================
// EVENT BROADCAST
// =============================================================================

// Subscribe returns a channel of broadcast events. The channel is closed
// by cancel or by Close.
func (o *Orchestrator) Subscribe() (<-chan protocol.ServerMessage, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan protocol.ServerMessage, o.eventBuffer)
	if o.closed {
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch

	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subs[id]; ok {
			close(c)
			delete(o.subs, id)
		}
	}
}

// publish fans msg out to every subscriber without blocking. A subscriber
// whose queue is full loses the event.
func (o *Orchestrator) publish(msg protocol.ServerMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for id, ch := range o.subs {
		select {
		case ch <- msg:
		default:
			log.Printf("MOCK_EVENT_DROPPED | subscriber=%d type=%s", id, msg.Type())
		}
	}
}
