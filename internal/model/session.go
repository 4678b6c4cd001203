// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// =============================================================================
// CONNECTION STATUS
// =============================================================================

// ConnectionStatus is the state of the orchestrator socket.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusError
)

// String returns the lowercase name of the status.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// =============================================================================
// AGENTS
// =============================================================================

// AgentInfo is one entry of the orchestrator's agent catalog.
type AgentInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AgentType   string `json:"agent_type"`
	Enabled     bool   `json:"enabled"`
}

// Label returns the display name, falling back to the ID.
func (a AgentInfo) Label() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.ID
}

// =============================================================================
// SESSIONS
// =============================================================================

// SessionStatus is the client-side view of a session's activity.
type SessionStatus string

const (
	SessionReady      SessionStatus = "Ready"
	SessionProcessing SessionStatus = "Processing"
)

// ParseSessionStatus maps an orchestrator status string onto the two states
// the client tracks. Anything other than Processing (Initializing, Idle,
// Error(...)) is treated as Ready.
func ParseSessionStatus(s string) SessionStatus {
	if strings.EqualFold(strings.TrimSpace(s), string(SessionProcessing)) {
		return SessionProcessing
	}
	return SessionReady
}

// SessionInfo describes a live orchestrator session.
type SessionInfo struct {
	SessionID   string        `json:"session_id"`
	AgentName   string        `json:"agent_name"`
	Status      SessionStatus `json:"status"`
	ModelConfig *ModelConfig  `json:"model_config,omitempty"`
}

// SessionMetadata holds per-session data that lives beside the transcript.
type SessionMetadata struct {
	TokenUsage  *TokenUsage  `json:"token_usage,omitempty"`
	ModelConfig *ModelConfig `json:"model_config,omitempty"`
}

// =============================================================================
// MODEL CONFIG
// =============================================================================

// ReasoningEffort mirrors the orchestrator's reasoning effort enum.
type ReasoningEffort string

const (
	ReasoningLow    ReasoningEffort = "low"
	ReasoningMedium ReasoningEffort = "medium"
	ReasoningHigh   ReasoningEffort = "high"
)

// ModelConfig is an optional per-session model override.
type ModelConfig struct {
	Model           string          `json:"model,omitempty"`
	ReasoningEffort ReasoningEffort `json:"reasoning_effort,omitempty"`
}

// Normalized trims the config and drops empty or unknown fields. It returns
// nil when nothing meaningful is left, so an empty config is always absent.
func (c *ModelConfig) Normalized() *ModelConfig {
	if c == nil {
		return nil
	}
	out := ModelConfig{Model: strings.TrimSpace(c.Model)}
	switch effort := ReasoningEffort(strings.ToLower(strings.TrimSpace(string(c.ReasoningEffort)))); effort {
	case ReasoningLow, ReasoningMedium, ReasoningHigh:
		out.ReasoningEffort = effort
	}
	if out.Model == "" && out.ReasoningEffort == "" {
		return nil
	}
	return &out
}

// Equal reports whether two configs hold the same values. Nil equals nil.
func (c *ModelConfig) Equal(other *ModelConfig) bool {
	if c == nil || other == nil {
		return c == nil && other == nil
	}
	return *c == *other
}

// String returns a compact description such as "o4-mini (high)".
func (c *ModelConfig) String() string {
	if c == nil {
		return "default"
	}
	switch {
	case c.Model != "" && c.ReasoningEffort != "":
		return c.Model + " (" + string(c.ReasoningEffort) + ")"
	case c.Model != "":
		return c.Model
	default:
		return "effort " + string(c.ReasoningEffort)
	}
}

// =============================================================================
// TOKEN USAGE
// =============================================================================

// TokenUsage is the opaque usage payload reported by an agent, with the
// common counters extracted for display. Agents report different shapes, so
// extraction is best effort and Raw is always kept.
type TokenUsage struct {
	Raw          json.RawMessage `json:"raw,omitempty"`
	InputTokens  int64           `json:"input_tokens,omitempty"`
	OutputTokens int64           `json:"output_tokens,omitempty"`
	CachedTokens int64           `json:"cached_tokens,omitempty"`
	TotalTokens  int64           `json:"total_tokens,omitempty"`
}

var (
	inputKeys  = []string{"input_tokens", "inputTokens", "prompt_tokens", "input"}
	outputKeys = []string{"output_tokens", "outputTokens", "completion_tokens", "output"}
	cachedKeys = []string{"cached_input_tokens", "cachedInputTokens", "cache_read_input_tokens", "cached"}
	totalKeys  = []string{"total_tokens", "totalTokens", "total"}
)

// ParseTokenUsage extracts counters from an arbitrary usage payload. Nested
// objects are searched breadth first up to three levels deep.
func ParseTokenUsage(raw json.RawMessage) TokenUsage {
	usage := TokenUsage{Raw: raw}
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return usage
	}
	usage.InputTokens = findCounter(root, inputKeys)
	usage.OutputTokens = findCounter(root, outputKeys)
	usage.CachedTokens = findCounter(root, cachedKeys)
	usage.TotalTokens = findCounter(root, totalKeys)
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	return usage
}

func findCounter(root map[string]any, keys []string) int64 {
	level := []map[string]any{root}
	for depth := 0; depth < 3 && len(level) > 0; depth++ {
		var next []map[string]any
		for _, obj := range level {
			for _, key := range keys {
				if v, ok := obj[key].(float64); ok {
					return int64(v)
				}
			}
			for _, name := range childKeys(obj) {
				next = append(next, obj[name].(map[string]any))
			}
		}
		level = next
	}
	return 0
}

// childKeys returns the keys of nested objects in a stable order, cumulative
// ("total...") objects first so running totals win over per-turn counts.
func childKeys(obj map[string]any) []string {
	var names []string
	for name, v := range obj {
		if _, ok := v.(map[string]any); ok {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ti := strings.HasPrefix(strings.ToLower(names[i]), "total")
		tj := strings.HasPrefix(strings.ToLower(names[j]), "total")
		if ti != tj {
			return ti
		}
		return names[i] < names[j]
	})
	return names
}
