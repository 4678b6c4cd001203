// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-interactive
// commands of agentdesk.
//
// # Key Types
//
//   - Command: the command to run (TUI, status, config, version, help)
//   - Args: parsed global flags and command arguments
//   - StatusData: result of probing the orchestrator
//   - JSONResponse: envelope for --json output
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	switch cmd {
//	case cli.CmdStatus:
//	    err = cli.HandleStatus(ctx, args, os.Stdout)
//	case cli.CmdConfig:
//	    err = cli.HandleConfig(args, os.Stdout)
//	}
//
// Global flags override the config file for one run only; "config set" is
// the way to persist a value.
package cli
