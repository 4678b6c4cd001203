// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mockagent is a stand-in orchestrator that speaks the agentdesk
// WebSocket protocol without launching real agents.
//
// Every connection gets direct replies to its own commands. Events produced
// by running prompts are broadcast to all connections, the way the real
// orchestrator fans out its event bus.
//
// # Key Types
//
//   - Orchestrator: Agent registry, live sessions and the event broadcast
//   - Script: The reply stream played back for each prompt, loadable from YAML
//   - Handler: http.Handler that upgrades to WebSocket and serves one client
//
// # Usage
//
//	orch := mockagent.New(mockagent.WithStepDelay(20 * time.Millisecond))
//	defer orch.Close()
//
//	mux := http.NewServeMux()
//	mux.Handle("GET /ws", mockagent.NewHandler(orch))
//
// # Script Files
//
//	step_delay_ms: 40
//	steps:
//	  - thinking: "Reading the project layout"
//	  - content: "You asked: {prompt}"
//	  - tool_call: {name: read_file, args: {path: main.go}}
//	  - file_change: {path: main.go, action: edit, diff: "+// hello"}
//	  - token_usage: {input_tokens: 120, output_tokens: 48}
package mockagent
