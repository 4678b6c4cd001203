// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the agentdesk TUI.

All colors are Lip Gloss AdaptiveColor values. The Theme resolves the
background once (forced dark, forced light, or asked from the terminal) and
builds every style from the shared palette.

# Key Types

  - Theme: all lipgloss styles plus terminal capabilities and size
  - Mode: dark, light or auto, parsed from the ui.theme config value
  - LayoutMode: narrow, medium or wide, from the terminal width

# Status Indicators

StatusIndicators pairs every status color with an ASCII marker ([OK], [X],
[!], [i]) so state never depends on color alone.

# Usage

	theme := styles.NewTheme(styles.ParseMode(cfg.UI.Theme))
	theme.SetSize(width, height)
	line := theme.StatusConnected.Render(styles.StatusIndicators.Active + " connected")
*/
package styles
