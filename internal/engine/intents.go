// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"errors"
	"log"

	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/protocol"
	"github.com/jeranaias/agentdesk/internal/session"
)

var (
	errAlreadyRunning = errors.New("engine: already running")
	errStopped        = errors.New("engine: stopped")
)

// =============================================================================
// CONNECTION INTENTS
// =============================================================================

// Connect asks the transport to dial.
func (e *Engine) Connect() {
	e.transport.Connect()
}

// Disconnect closes the transport and stops automatic reconnection.
func (e *Engine) Disconnect() {
	e.transport.Disconnect()
}

// RefreshCatalog re-requests the agent and session lists.
func (e *Engine) RefreshCatalog() {
	e.enqueue(e.refreshCatalog)
}

// =============================================================================
// SESSION INTENTS
// =============================================================================

// CreateSession asks the orchestrator for a new session. Without an explicit
// config the agent's remembered one is sent. The request is abandoned with a
// local error if nothing answers within the creation timeout.
func (e *Engine) CreateSession(agentID, projectPath string, cfg *model.ModelConfig) {
	e.enqueue(func() {
		cfg := cfg.Normalized()
		if cfg == nil {
			cfg = e.machine.State().AgentModelConfig(agentID)
		}

		attempt := e.pending.Start()
		e.machine.BeginCreation(agentID, attempt)

		cmd := protocol.CreateSession{AgentID: agentID, ProjectPath: projectPath, ModelConfig: cfg}
		if !e.transport.Send(cmd) {
			e.pending.Cancel()
			e.machine.CancelCreation()
			e.machine.ReportError(session.ErrTextNotConnected)
			return
		}
		log.Printf("SESSION_CREATE | agent=%s path=%s config=%s attempt=%d", agentID, projectPath, cfg, attempt)
	})
}

// SendPrompt appends the prompt to the transcript and sends it. The user
// message stays even when the send fails.
func (e *Engine) SendPrompt(sessionID, prompt string) {
	e.enqueue(func() {
		if !e.machine.AddUserMessage(sessionID, prompt) {
			e.machine.ReportError("unknown session " + sessionID)
			return
		}
		if !e.transport.Send(protocol.SendPrompt{SessionID: sessionID, Prompt: prompt}) {
			e.machine.ReportError(session.ErrTextNotConnected)
		}
	})
}

// CloseSession asks the orchestrator to stop a session. The session stays
// listed until session_closed arrives.
func (e *Engine) CloseSession(sessionID string) {
	e.enqueue(func() {
		if !e.transport.Send(protocol.CloseSession{SessionID: sessionID}) {
			e.machine.ReportError(session.ErrTextNotConnected)
		}
	})
}

// RemoveSession forgets a session locally without contacting the server.
func (e *Engine) RemoveSession(sessionID string) {
	e.enqueue(func() { e.machine.RemoveSession(sessionID) })
}

// SetActiveSession selects a session; an empty ID clears the selection.
func (e *Engine) SetActiveSession(sessionID string) {
	e.enqueue(func() { e.machine.SetActiveSession(sessionID) })
}

// SetSessionModelConfig sets a session's own model config.
func (e *Engine) SetSessionModelConfig(sessionID string, cfg *model.ModelConfig) {
	e.enqueue(func() { e.machine.SetSessionModelConfig(sessionID, cfg) })
}

// SetAgentModelConfig sets the remembered config for an agent.
func (e *Engine) SetAgentModelConfig(agentID string, cfg *model.ModelConfig) {
	e.enqueue(func() { e.machine.SetAgentModelConfig(agentID, cfg) })
}

// ReportError records a client-side error.
func (e *Engine) ReportError(text string) {
	e.enqueue(func() { e.machine.ReportError(text) })
}

// ClearError empties the last error slot.
func (e *Engine) ClearError() {
	e.enqueue(e.machine.ClearError)
}
