// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol implements the JSON wire format spoken with the agent
// orchestrator over its WebSocket endpoint.
//
// Every frame is one JSON object discriminated by a snake_case "type" field.
// Outbound frames are Commands; inbound frames decode into the closed set of
// ServerMessage types. Callers dispatch a decoded message through a Handler,
// which has one method per kind, so adding a kind forces every consumer to
// handle it before the module builds again.
//
// # Key Types
//
//   - Command: Sealed interface over CreateSession, SendPrompt, CloseSession,
//     ListAgents and ListSessions
//   - ServerMessage: Sealed interface over the eleven inbound kinds
//   - Handler: Visitor with one method per ServerMessage kind
//   - DecodeError: Returned for malformed frames and unknown types
//
// # Usage
//
// Encode a command for the socket:
//
//	data, err := protocol.Encode(protocol.SendPrompt{SessionID: id, Prompt: text})
//
// Decode and dispatch an inbound frame:
//
//	msg, err := protocol.Decode(frame)
//	if err != nil {
//	    log.Printf("FRAME_DROPPED | error=%v", err)
//	    return
//	}
//	msg.Accept(handler)
package protocol
