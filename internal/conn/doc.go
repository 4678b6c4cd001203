// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conn owns the WebSocket connection to the orchestrator.
//
// A Manager keeps at most one live socket and walks the status machine
//
//	disconnected -> connecting -> connected | error
//
// A closed socket always returns to disconnected. A dial failure reports
// error then disconnected. After either, the Manager waits a fixed delay and
// dials again until the attempt budget runs out; a successful open resets
// the budget. Disconnect cancels any pending retry and exhausts the budget.
//
// # Key Types
//
//   - Manager: Connection lifecycle, Send, and ordered notifications
//   - Options: Reconnect budget, timeouts, keepalive and frame size limit
//
// # Usage
//
//	mgr := conn.NewManager("ws://localhost:3001/ws")
//	mgr.SetHandlers(
//	    func(s model.ConnectionStatus) { log.Printf("WS_STATUS | status=%s", s) },
//	    func(frame []byte) { handle(frame) },
//	)
//	mgr.Connect()
//	defer mgr.Close()
//
//	if !mgr.Send(protocol.ListAgents{}) {
//	    // not connected, nothing was queued
//	}
//
// Status changes and frames reach the handlers from one goroutine, in the
// order they happened. Handlers must not block for long.
package conn
