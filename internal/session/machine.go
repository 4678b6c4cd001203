// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"slices"

	"github.com/jeranaias/agentdesk/internal/clock"
	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/protocol"
)

// =============================================================================
// MACHINE
// =============================================================================

// Machine owns the current State and applies transitions to it. It is not
// safe for concurrent use.
type Machine struct {
	state *State
	ids   *model.IDSequence
	clock clock.Clock
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithClock sets the clock used for message timestamps.
func WithClock(c clock.Clock) MachineOption {
	return func(m *Machine) {
		m.clock = c
	}
}

// WithIDSequence sets the message ID source.
func WithIDSequence(ids *model.IDSequence) MachineOption {
	return func(m *Machine) {
		m.ids = ids
	}
}

// NewMachine creates a Machine with an empty, disconnected state.
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{
		state: newState(),
		ids:   model.NewIDSequence(),
		clock: clock.Real(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current snapshot.
func (m *Machine) State() *State {
	return m.state
}

// Apply runs the rule for one server message and returns the resulting
// snapshot. Messages that change nothing return the previous snapshot.
func (m *Machine) Apply(msg protocol.ServerMessage) *State {
	msg.Accept(m)
	return m.state
}

func (m *Machine) commit(s *State) {
	m.state = s
}

var _ protocol.Handler = (*Machine)(nil)

// =============================================================================
// SESSION LIFECYCLE RULES
// =============================================================================

// OnSessionCreated registers the new session, resolves pending creation and
// makes the session active.
func (m *Machine) OnSessionCreated(msg protocol.SessionCreated) {
	s := m.state.next()

	key := s.CreatingSessionAgentID
	if key == "" {
		key = s.agentKey(msg.AgentName)
	}
	s.CreatingSessionAgentID = ""
	s.LastError = ""
	s.ensureSlots(msg.SessionID)

	cfg := msg.ModelConfig.Normalized()
	md := s.Metadata[msg.SessionID]
	switch {
	case cfg != nil:
		md.ModelConfig = cfg
		s.withAgentConfig(key, cfg)
	case md.ModelConfig == nil:
		md.ModelConfig = s.AgentModelConfigs[key]
	}
	s.withMetadata(msg.SessionID, md)

	info := model.SessionInfo{
		SessionID:   msg.SessionID,
		AgentName:   msg.AgentName,
		Status:      model.SessionReady,
		ModelConfig: cfg,
	}
	sessions := slices.Clone(s.Sessions)
	if idx := s.sessionIndex(msg.SessionID); idx >= 0 {
		sessions[idx] = info
	} else {
		sessions = append(sessions, info)
	}
	s.Sessions = sessions
	s.ActiveSessionID = msg.SessionID

	m.commit(s)
}

// OnPromptAccepted marks a known session as processing.
func (m *Machine) OnPromptAccepted(msg protocol.PromptAccepted) {
	idx := m.state.sessionIndex(msg.SessionID)
	if idx < 0 {
		return
	}
	s := m.state.next()
	s.Sessions = slices.Clone(s.Sessions)
	s.Sessions[idx].Status = model.SessionProcessing
	m.commit(s)
}

// OnSessionClosed removes the session, its transcript and its metadata.
func (m *Machine) OnSessionClosed(msg protocol.SessionClosed) {
	m.removeSession(msg.SessionID)
}

func (m *Machine) removeSession(id string) {
	_, hasMsgs := m.state.Messages[id]
	_, hasMeta := m.state.Metadata[id]
	if m.state.sessionIndex(id) < 0 && !hasMsgs && !hasMeta {
		return
	}
	s := m.state.next()
	s.removeSession(id)
	m.commit(s)
}

// =============================================================================
// STREAMING RULES
// =============================================================================

// OnContentDelta grows the streaming assistant message or opens a new one.
func (m *Machine) OnContentDelta(msg protocol.ContentDelta) {
	msgs, ok := m.state.Messages[msg.SessionID]
	if !ok {
		return
	}
	if n := len(msgs); n > 0 && msgs[n-1].AcceptsDelta() {
		msgs = replaceLast(msgs, msgs[n-1].WithDelta(msg.Content))
	} else {
		msgs = appendMessage(msgs, model.NewAssistantDelta(m.ids.Next(), msg.Content, m.clock.Now()))
	}
	m.setMessages(msg.SessionID, msgs)
}

// OnToolCall closes the streaming message and opens a running tool block.
func (m *Machine) OnToolCall(msg protocol.ToolCall) {
	msgs, ok := m.state.Messages[msg.SessionID]
	if !ok {
		return
	}
	block := model.NewToolCallMessage(m.ids.Next(), msg.ToolName, msg.Args, m.clock.Now())
	m.setMessages(msg.SessionID, appendMessage(msgs, block))
}

// OnFileChange closes the streaming message and opens a file change block.
func (m *Machine) OnFileChange(msg protocol.FileChange) {
	msgs, ok := m.state.Messages[msg.SessionID]
	if !ok {
		return
	}
	block := model.NewFileChangeMessage(m.ids.Next(), msg.Change(), m.clock.Now())
	m.setMessages(msg.SessionID, appendMessage(msgs, block))
}

// OnThinking accumulates reasoning into a message that already carries
// reasoning, otherwise opens a new one with empty content.
func (m *Machine) OnThinking(msg protocol.Thinking) {
	msgs, ok := m.state.Messages[msg.SessionID]
	if !ok {
		return
	}
	if n := len(msgs); n > 0 && msgs[n-1].Thinking != nil {
		msgs = replaceLast(msgs, msgs[n-1].WithThinking(msg.Content))
	} else {
		msgs = appendMessage(msgs, model.NewThinkingMessage(m.ids.Next(), msg.Content, m.clock.Now()))
	}
	m.setMessages(msg.SessionID, msgs)
}

// OnTokenUsage records usage in the session metadata only.
func (m *Machine) OnTokenUsage(msg protocol.TokenUsage) {
	if _, ok := m.state.Messages[msg.SessionID]; !ok {
		return
	}
	s := m.state.next()
	md := s.Metadata[msg.SessionID]
	usage := model.ParseTokenUsage(msg.Usage)
	md.TokenUsage = &usage
	s.withMetadata(msg.SessionID, md)
	m.commit(s)
}

func (m *Machine) setMessages(id string, msgs []model.ChatMessage) {
	s := m.state.next()
	s.withMessages(id, msgs)
	m.commit(s)
}

// =============================================================================
// CATALOG RULES
// =============================================================================

// OnAgentList replaces the agent catalog.
func (m *Machine) OnAgentList(msg protocol.AgentList) {
	s := m.state.next()
	s.Agents = slices.Clone(msg.Agents)
	if s.Agents == nil {
		s.Agents = []model.AgentInfo{}
	}
	m.commit(s)
}

// OnSessionList replaces the session list and propagates any reported
// model configs. Transcripts of sessions missing from the list are kept;
// only session_closed or a local remove deletes them.
func (m *Machine) OnSessionList(msg protocol.SessionList) {
	s := m.state.next()

	sessions := make([]model.SessionInfo, 0, len(msg.Sessions))
	seen := make(map[string]bool, len(msg.Sessions))
	for _, entry := range msg.Sessions {
		if entry.SessionID == "" || seen[entry.SessionID] {
			continue
		}
		seen[entry.SessionID] = true
		sessions = append(sessions, entry.Info())
	}
	s.Sessions = sessions

	ids := make([]string, len(sessions))
	for i, info := range sessions {
		ids[i] = info.SessionID
	}
	s.ensureSlots(ids...)

	for _, info := range sessions {
		if info.ModelConfig == nil {
			continue
		}
		md := s.Metadata[info.SessionID]
		if !md.ModelConfig.Equal(info.ModelConfig) {
			md.ModelConfig = info.ModelConfig
			s.withMetadata(info.SessionID, md)
		}
		key := s.agentKey(info.AgentName)
		if !s.AgentModelConfigs[key].Equal(info.ModelConfig) {
			s.withAgentConfig(key, info.ModelConfig)
		}
	}

	if s.ActiveSessionID != "" && s.sessionIndex(s.ActiveSessionID) < 0 {
		s.ActiveSessionID = firstSessionID(s.Sessions)
	}

	m.commit(s)
}

// =============================================================================
// ERROR RULE
// =============================================================================

// OnError clears pending creation, records the error and shows it in the
// active session.
func (m *Machine) OnError(msg protocol.Error) {
	m.fail(msg.Message, true)
}

// fail records text as the last error and appends a system message to the
// active session, closing its streaming message.
func (m *Machine) fail(text string, clearPending bool) {
	s := m.state.next()
	if clearPending {
		s.CreatingSessionAgentID = ""
	}
	s.LastError = text
	if id := s.ActiveSessionID; id != "" {
		if msgs, ok := s.Messages[id]; ok {
			sys := model.NewSystemMessage(m.ids.Next(), text, m.clock.Now())
			s.withMessages(id, appendMessage(msgs, sys))
		}
	}
	m.commit(s)
}
