// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server hosts the mock orchestrator over HTTP.
//
// One listener carries the WebSocket protocol and the filesystem REST API
// the directory picker uses, so a single --server/--api pair points the
// client at it.
//
// # Endpoints
//
//   - GET /ws              - Orchestrator WebSocket (mockagent.Handler)
//   - GET /api/fs/*        - Filesystem browsing (fsapi.Local)
//   - GET /api/agents      - Agent registry as JSON
//   - GET /api/sessions    - Live sessions as JSON
//   - GET /health          - Health check
//
// # Middleware
//
//   - Panic recovery
//   - Security headers (X-Content-Type-Options, X-Frame-Options, etc.)
//   - Request logging (passes hijacking through for WebSocket upgrades)
//   - CORS for local web front ends
//   - Per-IP token bucket rate limiting
//
// # Usage
//
//	orch := mockagent.New()
//	srv := server.NewServer("127.0.0.1:3001", orch, fsapi.NewLocal())
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
