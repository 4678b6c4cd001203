// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the client-side state machine that turns decoded
// orchestrator events and local intents into session snapshots.
//
// The Machine is single threaded: the engine calls it from one loop. Each
// transition produces a new *State with a higher Version. Maps and slices
// that a transition does not touch are shared with the previous snapshot,
// so consumers may keep old snapshots and compare by Version or pointer.
//
// # Key Types
//
//   - Machine: Applies server messages (it implements protocol.Handler)
//     and local intents
//   - State: Immutable snapshot with agents, sessions, transcripts,
//     metadata, remembered model configs, pending creation and last error
//
// # Usage
//
//	m := session.NewMachine(session.WithClock(clock.Real()))
//	msg, err := protocol.Decode(frame)
//	if err == nil {
//	    state := m.Apply(msg)
//	    render(state.ActiveMessages())
//	}
//
// # Streaming
//
// Consecutive content deltas grow one assistant message. A tool call, file
// change, error or any other new message closes the streaming message and
// starts a new block. Reasoning chunks accumulate only into a message that
// already carries reasoning text.
package session
