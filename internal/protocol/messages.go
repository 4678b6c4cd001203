// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"

	"github.com/jeranaias/agentdesk/internal/model"
)

// Inbound frame types.
const (
	TypeSessionCreated = "session_created"
	TypePromptAccepted = "prompt_accepted"
	TypeContentDelta   = "content_delta"
	TypeToolCall       = "tool_call"
	TypeFileChange     = "file_change"
	TypeTokenUsage     = "token_usage"
	TypeThinking       = "thinking"
	TypeSessionClosed  = "session_closed"
	TypeAgentList      = "agent_list"
	TypeSessionList    = "session_list"
	TypeError          = "error"
)

// =============================================================================
// SERVER MESSAGE INTERFACE
// =============================================================================

// ServerMessage is a decoded server to client frame. The set of
// implementations is closed.
type ServerMessage interface {
	// Type returns the wire discriminator.
	Type() string

	// Accept calls the Handler method matching the concrete kind.
	Accept(h Handler)
}

// Handler receives decoded server messages, one method per kind.
type Handler interface {
	OnSessionCreated(SessionCreated)
	OnPromptAccepted(PromptAccepted)
	OnContentDelta(ContentDelta)
	OnToolCall(ToolCall)
	OnFileChange(FileChange)
	OnTokenUsage(TokenUsage)
	OnThinking(Thinking)
	OnSessionClosed(SessionClosed)
	OnAgentList(AgentList)
	OnSessionList(SessionList)
	OnError(Error)
}

// =============================================================================
// SESSION EVENTS
// =============================================================================

// SessionCreated confirms a create_session request.
type SessionCreated struct {
	SessionID   string             `json:"session_id"`
	AgentName   string             `json:"agent_name"`
	ModelConfig *model.ModelConfig `json:"model_config,omitempty"`
}

// PromptAccepted reports that a session started working on a prompt.
type PromptAccepted struct {
	SessionID string `json:"session_id"`
}

// ContentDelta carries a fragment of assistant text.
type ContentDelta struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// ToolCall reports a tool invocation by the agent.
type ToolCall struct {
	SessionID string          `json:"session_id"`
	ToolName  string          `json:"tool_name"`
	Args      json.RawMessage `json:"args"`
}

// FileChange reports a file the agent touched.
type FileChange struct {
	SessionID string           `json:"session_id"`
	Path      string           `json:"path"`
	Action    model.FileAction `json:"action"`
	Content   *string          `json:"content,omitempty"`
	Diff      *string          `json:"diff,omitempty"`
}

// Change returns the model form of the descriptor.
func (m FileChange) Change() model.FileChange {
	return model.FileChange{Path: m.Path, Action: m.Action, Content: m.Content, Diff: m.Diff}
}

// TokenUsage carries the agent's usage report. The payload shape differs
// between agents and is passed through untouched.
type TokenUsage struct {
	SessionID string          `json:"session_id"`
	Usage     json.RawMessage `json:"usage"`
}

// Thinking carries a fragment of reasoning text.
type Thinking struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// SessionClosed reports that a session ended.
type SessionClosed struct {
	SessionID string `json:"session_id"`
}

// =============================================================================
// CATALOG EVENTS
// =============================================================================

// AgentList is the full agent catalog.
type AgentList struct {
	Agents []model.AgentInfo `json:"agents"`
}

// SessionEntry is one row of a session_list frame. Status is the
// orchestrator's raw status string.
type SessionEntry struct {
	SessionID   string             `json:"session_id"`
	AgentName   string             `json:"agent_name"`
	Status      string             `json:"status"`
	ModelConfig *model.ModelConfig `json:"model_config,omitempty"`
}

// Info converts the entry into the client model.
func (e SessionEntry) Info() model.SessionInfo {
	return model.SessionInfo{
		SessionID:   e.SessionID,
		AgentName:   e.AgentName,
		Status:      model.ParseSessionStatus(e.Status),
		ModelConfig: e.ModelConfig.Normalized(),
	}
}

// SessionList is the full list of live sessions.
type SessionList struct {
	Sessions []SessionEntry `json:"sessions"`
}

// Error is an orchestrator error report.
type Error struct {
	Message string `json:"message"`
}

// =============================================================================
// DISPATCH
// =============================================================================

func (SessionCreated) Type() string { return TypeSessionCreated }
func (PromptAccepted) Type() string { return TypePromptAccepted }
func (ContentDelta) Type() string   { return TypeContentDelta }
func (ToolCall) Type() string       { return TypeToolCall }
func (FileChange) Type() string     { return TypeFileChange }
func (TokenUsage) Type() string     { return TypeTokenUsage }
func (Thinking) Type() string       { return TypeThinking }
func (SessionClosed) Type() string  { return TypeSessionClosed }
func (AgentList) Type() string      { return TypeAgentList }
func (SessionList) Type() string    { return TypeSessionList }
func (Error) Type() string          { return TypeError }

func (m SessionCreated) Accept(h Handler) { h.OnSessionCreated(m) }
func (m PromptAccepted) Accept(h Handler) { h.OnPromptAccepted(m) }
func (m ContentDelta) Accept(h Handler)   { h.OnContentDelta(m) }
func (m ToolCall) Accept(h Handler)       { h.OnToolCall(m) }
func (m FileChange) Accept(h Handler)     { h.OnFileChange(m) }
func (m TokenUsage) Accept(h Handler)     { h.OnTokenUsage(m) }
func (m Thinking) Accept(h Handler)       { h.OnThinking(m) }
func (m SessionClosed) Accept(h Handler)  { h.OnSessionClosed(m) }
func (m AgentList) Accept(h Handler)      { h.OnAgentList(m) }
func (m SessionList) Accept(h Handler)    { h.OnSessionList(m) }
func (m Error) Accept(h Handler)          { h.OnError(m) }

// SessionScoped is implemented by messages addressed to one session.
type SessionScoped interface {
	ServerMessage
	Session() string
}

func (m SessionCreated) Session() string { return m.SessionID }
func (m PromptAccepted) Session() string { return m.SessionID }
func (m ContentDelta) Session() string   { return m.SessionID }
func (m ToolCall) Session() string       { return m.SessionID }
func (m FileChange) Session() string     { return m.SessionID }
func (m TokenUsage) Session() string     { return m.SessionID }
func (m Thinking) Session() string       { return m.SessionID }
func (m SessionClosed) Session() string  { return m.SessionID }
