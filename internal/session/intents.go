// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/jeranaias/agentdesk/internal/model"
)

// Local error texts.
const (
	ErrTextCreationTimeout = "timed out waiting for the orchestrator to create the session"
	ErrTextNotConnected    = "not connected to orchestrator"
)

// =============================================================================
// PROMPTS AND REMOVAL
// =============================================================================

// AddUserMessage appends the user's prompt to a session transcript. The
// message stays even if sending it fails. It reports false when the session
// has no transcript.
func (m *Machine) AddUserMessage(sessionID, prompt string) bool {
	msgs, ok := m.state.Messages[sessionID]
	if !ok {
		return false
	}
	msg := model.NewUserMessage(m.ids.Next(), prompt, m.clock.Now())
	m.setMessages(sessionID, appendMessage(msgs, msg))
	return true
}

// RemoveSession drops a session locally, exactly as session_closed would.
func (m *Machine) RemoveSession(sessionID string) {
	m.removeSession(sessionID)
}

// =============================================================================
// SESSION CREATION
// =============================================================================

// BeginCreation marks a creation attempt for agentID as pending. A newer
// attempt replaces an older one.
func (m *Machine) BeginCreation(agentID string, attempt uint64) {
	s := m.state.next()
	s.CreatingSessionAgentID = agentID
	s.CreationAttempt = attempt
	m.commit(s)
}

// CreationTimedOut clears the pending flag and records a timeout error, but
// only when attempt is still the pending one. It reports whether it did.
func (m *Machine) CreationTimedOut(attempt uint64) bool {
	if !m.state.IsCreating() || m.state.CreationAttempt != attempt {
		return false
	}
	m.fail(ErrTextCreationTimeout, true)
	return true
}

// CancelCreation clears the pending flag without recording an error.
func (m *Machine) CancelCreation() {
	if !m.state.IsCreating() {
		return
	}
	s := m.state.next()
	s.CreatingSessionAgentID = ""
	m.commit(s)
}

// =============================================================================
// ERRORS
// =============================================================================

// ReportError records a client-side error with the same visible treatment
// as a server error. Pending creation is left alone.
func (m *Machine) ReportError(text string) {
	m.fail(text, false)
}

// ClearError empties the last error slot.
func (m *Machine) ClearError() {
	if m.state.LastError == "" {
		return
	}
	s := m.state.next()
	s.LastError = ""
	m.commit(s)
}

// =============================================================================
// SELECTION, CONFIG AND STATUS
// =============================================================================

// SetActiveSession selects a listed session, or clears the selection when
// id is empty. Unknown IDs are rejected.
func (m *Machine) SetActiveSession(id string) bool {
	if id != "" && m.state.sessionIndex(id) < 0 {
		return false
	}
	if m.state.ActiveSessionID == id {
		return true
	}
	s := m.state.next()
	s.ActiveSessionID = id
	m.commit(s)
	return true
}

// SetSessionModelConfig sets or clears a session's own model config. A
// concrete config also becomes its agent's remembered default.
func (m *Machine) SetSessionModelConfig(sessionID string, cfg *model.ModelConfig) bool {
	info, ok := m.state.Session(sessionID)
	if !ok {
		return false
	}
	cfg = cfg.Normalized()
	s := m.state.next()
	md := s.Metadata[sessionID]
	md.ModelConfig = cfg
	s.withMetadata(sessionID, md)
	if cfg != nil {
		s.withAgentConfig(s.agentKey(info.AgentName), cfg)
	}
	m.commit(s)
	return true
}

// SetAgentModelConfig sets or clears an agent's remembered default.
func (m *Machine) SetAgentModelConfig(agentID string, cfg *model.ModelConfig) {
	s := m.state.next()
	s.withAgentConfig(s.agentKey(agentID), cfg.Normalized())
	m.commit(s)
}

// SetConnectionStatus records the socket status.
func (m *Machine) SetConnectionStatus(status model.ConnectionStatus) {
	if m.state.Status == status {
		return
	}
	s := m.state.next()
	s.Status = status
	m.commit(s)
}
