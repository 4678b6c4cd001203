// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Agent"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// TOOL CALLS AND FILE CHANGES
// =============================================================================

// ToolStatus is the lifecycle state of a tool call block.
type ToolStatus string

const (
	ToolStatusRunning   ToolStatus = "running"
	ToolStatusCompleted ToolStatus = "completed"
	ToolStatusFailed    ToolStatus = "failed"
)

// ToolCall describes a tool invocation reported by the agent.
type ToolCall struct {
	ToolName string          `json:"tool_name"`
	Args     json.RawMessage `json:"args,omitempty"`
	Status   ToolStatus      `json:"status"`
}

// FileAction is the kind of file operation an agent performed.
type FileAction string

const (
	FileActionRead   FileAction = "read"
	FileActionWrite  FileAction = "write"
	FileActionEdit   FileAction = "edit"
	FileActionDelete FileAction = "delete"
)

// ParseFileAction validates a wire action string.
func ParseFileAction(s string) (FileAction, bool) {
	switch FileAction(s) {
	case FileActionRead, FileActionWrite, FileActionEdit, FileActionDelete:
		return FileAction(s), true
	default:
		return "", false
	}
}

// FileChange describes a file the agent read or modified.
type FileChange struct {
	Path    string     `json:"path"`
	Action  FileAction `json:"action"`
	Content *string    `json:"content,omitempty"`
	Diff    *string    `json:"diff,omitempty"`
}

// =============================================================================
// CHAT MESSAGE TYPE
// =============================================================================

// ChatMessage represents a single block in a session transcript.
//
// A message is replaced (never edited through a shared pointer) while
// IsStreaming is true. Once a boundary event closes it, it stays as is.
type ChatMessage struct {
	// Identity
	ID        MessageID `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content  string  `json:"content"`
	Thinking *string `json:"thinking,omitempty"`

	// Blocks
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	FileChange *FileChange `json:"file_change,omitempty"`

	// Usage snapshot attached to this message, if any
	TokenUsage *TokenUsage `json:"token_usage,omitempty"`

	IsStreaming bool `json:"is_streaming"`
}

// NewUserMessage creates a user message.
func NewUserMessage(id MessageID, content string, now time.Time) ChatMessage {
	return ChatMessage{ID: id, Role: RoleUser, Content: content, Timestamp: now}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(id MessageID, content string, now time.Time) ChatMessage {
	return ChatMessage{ID: id, Role: RoleSystem, Content: content, Timestamp: now}
}

// NewAssistantDelta opens a streaming assistant message holding one delta.
func NewAssistantDelta(id MessageID, delta string, now time.Time) ChatMessage {
	return ChatMessage{ID: id, Role: RoleAssistant, Content: delta, Timestamp: now, IsStreaming: true}
}

// NewThinkingMessage opens a streaming assistant message with reasoning text
// and no content.
func NewThinkingMessage(id MessageID, thinking string, now time.Time) ChatMessage {
	t := thinking
	return ChatMessage{ID: id, Role: RoleAssistant, Thinking: &t, Timestamp: now, IsStreaming: true}
}

// NewToolCallMessage creates an assistant message carrying a running tool call.
func NewToolCallMessage(id MessageID, toolName string, args json.RawMessage, now time.Time) ChatMessage {
	return ChatMessage{
		ID:        id,
		Role:      RoleAssistant,
		Timestamp: now,
		ToolCall:  &ToolCall{ToolName: toolName, Args: args, Status: ToolStatusRunning},
	}
}

// NewFileChangeMessage creates an assistant message carrying a file change.
func NewFileChangeMessage(id MessageID, change FileChange, now time.Time) ChatMessage {
	c := change
	return ChatMessage{ID: id, Role: RoleAssistant, Timestamp: now, FileChange: &c}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// IsBlock reports whether the message is a tool call or file change block.
func (m ChatMessage) IsBlock() bool {
	return m.ToolCall != nil || m.FileChange != nil
}

// AcceptsDelta reports whether a content delta may be appended to m.
func (m ChatMessage) AcceptsDelta() bool {
	return m.Role == RoleAssistant && !m.IsBlock()
}

// WithDelta returns a copy of m with delta appended and streaming set.
func (m ChatMessage) WithDelta(delta string) ChatMessage {
	m.Content += delta
	m.IsStreaming = true
	return m
}

// WithThinking returns a copy of m with reasoning text appended.
func (m ChatMessage) WithThinking(chunk string) ChatMessage {
	var t string
	if m.Thinking != nil {
		t = *m.Thinking
	}
	t += chunk
	m.Thinking = &t
	return m
}

// Closed returns a copy of m with the streaming flag cleared.
func (m ChatMessage) Closed() ChatMessage {
	m.IsStreaming = false
	return m
}

// Preview returns a truncated single-line preview of the message content.
func (m ChatMessage) Preview(maxLen int) string {
	content := m.Content
	switch {
	case m.ToolCall != nil:
		content = "tool: " + m.ToolCall.ToolName
	case m.FileChange != nil:
		content = string(m.FileChange.Action) + " " + m.FileChange.Path
	case content == "" && m.Thinking != nil:
		content = *m.Thinking
	}
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
