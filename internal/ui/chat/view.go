// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/agentdesk/internal/ui/styles"
	"github.com/jeranaias/agentdesk/internal/util"
)

// Fixed rows outside the main area.
const (
	inputRows  = 4 // border + textarea
	statusRows = 1
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes every component from the window size.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.theme.SetSize(m.width, m.height)

	mainHeight := m.height - inputRows - statusRows
	if m.hasError() {
		mainHeight--
	}
	if m.showHelp {
		mainHeight -= lipgloss.Height(m.help.View(m.keys))
	}
	if mainHeight < 3 {
		mainHeight = 3
	}

	sideWidth := m.theme.SidebarWidth()
	mainWidth := m.width - sideWidth
	if mainWidth < 20 {
		mainWidth = 20
	}

	m.sidebar.SetSize(sideWidth, mainHeight)
	m.viewport.Width = mainWidth
	m.viewport.Height = mainHeight
	m.transcript.SetWidth(mainWidth - 1)
	m.statusBar.SetWidth(m.width)
	m.input.SetWidth(m.width - 4)
	m.help.Width = m.width

	pickerWidth := mainWidth - 4
	if pickerWidth > 80 {
		pickerWidth = 80
	}
	pickerHeight := mainHeight - 2
	if pickerHeight > 20 {
		pickerHeight = 20
	}
	m.agents.SetSize(pickerWidth, pickerHeight)
	m.dirs.SetSize(pickerWidth, pickerHeight)

	m.shownVersion = 0
	m.refreshTranscript()
}

func (m Model) hasError() bool {
	return m.state != nil && m.state.LastError != ""
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the window.
func (m Model) View() string {
	if m.width == 0 {
		return "Starting..."
	}

	var main string
	switch m.mode {
	case modeAgentPicker:
		main = m.centered(m.agents.View())
	case modeDirPicker:
		main = m.centered(m.dirs.View())
	default:
		main = m.viewport.View()
	}

	var parts []string
	if side := m.theme.SidebarWidth(); side > 0 {
		parts = append(parts, lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(m.state, m.spinner.View()), main))
	} else {
		parts = append(parts, main)
	}

	if m.hasError() {
		banner := styles.StatusIndicators.Error + " " + m.state.LastError + "  (esc to dismiss)"
		parts = append(parts, m.theme.ErrorBanner.Width(m.width).Render(util.TruncateWidth(banner, m.width-2)))
	}

	parts = append(parts, m.theme.InputContainer.Width(m.width).Render(m.input.View()))
	if m.showHelp {
		parts = append(parts, m.help.View(m.keys))
	}
	parts = append(parts, m.statusBar.View())

	return strings.Join(parts, "\n")
}

// centered places a picker in the middle of the main area.
func (m Model) centered(box string) string {
	width := m.viewport.Width
	height := m.viewport.Height
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
