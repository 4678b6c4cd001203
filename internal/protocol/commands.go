// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/agentdesk/internal/model"
)

// =============================================================================
// COMMAND KINDS
// =============================================================================

// Outbound frame types.
const (
	TypeCreateSession = "create_session"
	TypeSendPrompt    = "send_prompt"
	TypeCloseSession  = "close_session"
	TypeListAgents    = "list_agents"
	TypeListSessions  = "list_sessions"
)

// Command is a client to server frame.
type Command interface {
	// Type returns the wire discriminator.
	Type() string

	isCommand()
}

// CreateSession asks the orchestrator to launch an agent in a project
// directory.
type CreateSession struct {
	AgentID     string             `json:"agent_id"`
	ProjectPath string             `json:"project_path"`
	ModelConfig *model.ModelConfig `json:"model_config,omitempty"`
}

// SendPrompt submits user input to a session.
type SendPrompt struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

// CloseSession asks the orchestrator to stop a session.
type CloseSession struct {
	SessionID string `json:"session_id"`
}

// ListAgents requests the agent catalog.
type ListAgents struct{}

// ListSessions requests the live session list.
type ListSessions struct{}

func (CreateSession) Type() string { return TypeCreateSession }
func (SendPrompt) Type() string    { return TypeSendPrompt }
func (CloseSession) Type() string  { return TypeCloseSession }
func (ListAgents) Type() string    { return TypeListAgents }
func (ListSessions) Type() string  { return TypeListSessions }

func (CreateSession) isCommand() {}
func (SendPrompt) isCommand()    {}
func (CloseSession) isCommand()  {}
func (ListAgents) isCommand()    {}
func (ListSessions) isCommand()  {}

// =============================================================================
// ENCODING
// =============================================================================

// Encode serializes cmd as a single text frame. An empty model config is
// omitted rather than sent as {}.
func Encode(cmd Command) ([]byte, error) {
	var frame any
	switch c := cmd.(type) {
	case CreateSession:
		c.ModelConfig = c.ModelConfig.Normalized()
		frame = struct {
			Type string `json:"type"`
			CreateSession
		}{c.Type(), c}
	case SendPrompt:
		frame = struct {
			Type string `json:"type"`
			SendPrompt
		}{c.Type(), c}
	case CloseSession:
		frame = struct {
			Type string `json:"type"`
			CloseSession
		}{c.Type(), c}
	case ListAgents, ListSessions:
		frame = struct {
			Type string `json:"type"`
		}{c.Type()}
	default:
		return nil, fmt.Errorf("encode: unsupported command %T", cmd)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Type(), err)
	}
	return data, nil
}

// DecodeCommand parses a client frame. It is used by the mock orchestrator
// and by tests.
func DecodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Reason: "invalid frame", Cause: err}
	}

	var cmd Command
	var err error
	switch env.Type {
	case TypeCreateSession:
		var c CreateSession
		err = json.Unmarshal(data, &c)
		if err == nil && c.AgentID == "" {
			return nil, &DecodeError{Type: env.Type, Reason: "missing agent_id"}
		}
		cmd = c
	case TypeSendPrompt:
		var c SendPrompt
		err = json.Unmarshal(data, &c)
		if err == nil && c.SessionID == "" {
			return nil, &DecodeError{Type: env.Type, Reason: "missing session_id"}
		}
		cmd = c
	case TypeCloseSession:
		var c CloseSession
		err = json.Unmarshal(data, &c)
		if err == nil && c.SessionID == "" {
			return nil, &DecodeError{Type: env.Type, Reason: "missing session_id"}
		}
		cmd = c
	case TypeListAgents:
		cmd = ListAgents{}
	case TypeListSessions:
		cmd = ListSessions{}
	default:
		return nil, &DecodeError{Type: env.Type, Reason: "unknown type", unknown: true}
	}
	if err != nil {
		return nil, &DecodeError{Type: env.Type, Reason: "invalid payload", Cause: err}
	}
	return cmd, nil
}
