// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the agentdesk packages.
//
// # Key Functions
//
// String Utilities:
//   - TruncateWidth: Display-width truncation (wide runes count as 2)
//   - PadRight: Pads to a display width
//   - StringWidth: Display width of a string
//   - FirstLine: The first line of a block of text
//
// Formatting:
//   - FormatCount: Compact token counts (1.2k, 3.4M)
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	label := util.TruncateWidth(session.AgentName, 20)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
