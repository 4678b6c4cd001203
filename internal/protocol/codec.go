// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/agentdesk/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// DecodeError describes a frame that could not be turned into a message.
type DecodeError struct {
	Type    string // wire type, empty if the frame had none
	Reason  string
	Cause   error
	unknown bool
}

func (e *DecodeError) Error() string {
	msg := e.Reason
	if e.Type != "" {
		msg = e.Type + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// IsUnknownType reports whether err is a DecodeError for a well-formed frame
// whose type this client does not know.
func IsUnknownType(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.unknown
}

// =============================================================================
// DECODING
// =============================================================================

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one server frame. Malformed JSON, a missing or unknown type,
// and payloads missing required fields all return a *DecodeError.
func Decode(data []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Reason: "invalid frame", Cause: err}
	}
	if env.Type == "" {
		return nil, &DecodeError{Reason: "missing type"}
	}

	msg, err := decodeKind(env.Type, data)
	if err != nil {
		return nil, err
	}
	if reason := validate(msg); reason != "" {
		return nil, &DecodeError{Type: env.Type, Reason: reason}
	}
	return msg, nil
}

func decodeKind(kind string, data []byte) (ServerMessage, error) {
	switch kind {
	case TypeSessionCreated:
		return unmarshalAs[SessionCreated](kind, data)
	case TypePromptAccepted:
		return unmarshalAs[PromptAccepted](kind, data)
	case TypeContentDelta:
		return unmarshalAs[ContentDelta](kind, data)
	case TypeToolCall:
		return unmarshalAs[ToolCall](kind, data)
	case TypeFileChange:
		return unmarshalAs[FileChange](kind, data)
	case TypeTokenUsage:
		return unmarshalAs[TokenUsage](kind, data)
	case TypeThinking:
		return unmarshalAs[Thinking](kind, data)
	case TypeSessionClosed:
		return unmarshalAs[SessionClosed](kind, data)
	case TypeAgentList:
		return unmarshalAs[AgentList](kind, data)
	case TypeSessionList:
		return unmarshalAs[SessionList](kind, data)
	case TypeError:
		return unmarshalAs[Error](kind, data)
	default:
		return nil, &DecodeError{Type: kind, Reason: "unknown type", unknown: true}
	}
}

func unmarshalAs[T ServerMessage](kind string, data []byte) (ServerMessage, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &DecodeError{Type: kind, Reason: "invalid payload", Cause: err}
	}
	return msg, nil
}

// validate returns a non-empty reason when a required field is missing.
func validate(msg ServerMessage) string {
	if scoped, ok := msg.(SessionScoped); ok && scoped.Session() == "" {
		return "missing session_id"
	}
	switch m := msg.(type) {
	case ToolCall:
		if m.ToolName == "" {
			return "missing tool_name"
		}
	case FileChange:
		if m.Path == "" {
			return "missing path"
		}
		if _, ok := model.ParseFileAction(string(m.Action)); !ok {
			return fmt.Sprintf("unknown action %q", m.Action)
		}
	case TokenUsage:
		if len(m.Usage) == 0 {
			return "missing usage"
		}
	}
	return ""
}

// =============================================================================
// SERVER SIDE ENCODING
// =============================================================================

// EncodeMessage serializes a server message with its type tag. The client
// never sends these; the mock orchestrator does.
func EncodeMessage(msg ServerMessage) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return withType(msg.Type(), body), nil
}

// withType prepends a "type" member to a marshaled JSON object.
func withType(kind string, body []byte) []byte {
	tag, _ := json.Marshal(kind)
	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if !bytes.Equal(body, []byte("{}")) {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes()
}
