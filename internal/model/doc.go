// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the connection,
// session state machine and terminal front end.
//
// # Key Types
//
//   - ChatMessage: Single transcript entry with role, content and optional
//     tool call, file change, thinking text and token usage
//   - SessionInfo: Live orchestrator session as reported by the server
//   - AgentInfo: Catalog entry for an agent the orchestrator can launch
//   - ModelConfig: Per-session model and reasoning-effort override
//   - SessionMetadata: Token usage and model config kept beside the transcript
//   - ConnectionStatus: Socket state (disconnected, connecting, connected, error)
//
// # Usage
//
// Build a user message with a fresh process-unique ID:
//
//	ids := model.NewIDSequence()
//	msg := model.NewUserMessage(ids.Next(), "fix the failing test", time.Now())
//
// Normalize a model config before storing it:
//
//	cfg := model.ModelConfig{Model: " o4-mini ", ReasoningEffort: "HIGH"}
//	normalized := cfg.Normalized() // &{Model:"o4-mini" ReasoningEffort:"high"}
//
// All values in this package are treated as immutable once they are part of
// a published session snapshot. Update helpers return modified copies.
package model
