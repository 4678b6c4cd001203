// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for agentdesk.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Orchestrator WebSocket and REST endpoints
//   - ConnectionConfig: Reconnect budget, socket timeouts and creation timeout
//   - UIConfig: Theme and rendering switches
//   - Watcher: Reloads the config file when it changes on disk
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command line flags
//   - Environment variables (AGENTDESK_*)
//   - ~/.agentdesk/config.toml
//   - ~/.agentdesk/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Build connection options:
//
//	mgr := conn.NewManager(cfg.Server.URL, conn.WithOptions(cfg.ConnOptions()))
package config
