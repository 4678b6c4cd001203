// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/session"
	"github.com/jeranaias/agentdesk/internal/ui/styles"
	"github.com/jeranaias/agentdesk/internal/util"
)

// Sidebar lists the live sessions with the active one highlighted.
type Sidebar struct {
	theme  *styles.Theme
	width  int
	height int
}

// NewSidebar creates a sidebar.
func NewSidebar(theme *styles.Theme) *Sidebar {
	return &Sidebar{theme: theme, width: 28, height: 20}
}

// SetSize sets the outer size, border included.
func (s *Sidebar) SetSize(width, height int) {
	s.width, s.height = width, height
}

// SetTheme swaps the theme.
func (s *Sidebar) SetTheme(theme *styles.Theme) {
	s.theme = theme
}

// View renders the session list. spinner is drawn beside busy sessions and
// the pending creation.
func (s *Sidebar) View(st *session.State, spinner string) string {
	inner := s.width - 3
	if inner < 8 {
		inner = 8
	}

	var rows []string
	active := -1
	if st != nil {
		for i, info := range st.Sessions {
			if info.SessionID == st.ActiveSessionID {
				active = i
			}
			rows = append(rows, s.row(info, info.SessionID == st.ActiveSessionID, spinner, inner))
		}
		if st.IsCreating() {
			label := st.CreatingSessionAgentID
			if agent, ok := st.Agent(label); ok {
				label = agent.Label()
			}
			rows = append(rows, s.theme.SessionCreating.Render(
				util.TruncateWidth(strings.TrimSpace(spinner+" starting "+label+"…"), inner)))
		}
	}
	if len(rows) == 0 {
		rows = append(rows, s.theme.SessionCreating.Render("No sessions"),
			s.theme.SessionID.Render("ctrl+n to start one"))
	}

	title := s.theme.SidebarTitle.Render(fmt.Sprintf("Sessions (%d)", sessionCount(st)))
	rows = visibleRows(rows, active, s.height-2)

	body := title + "\n" + strings.Join(rows, "\n")
	return s.theme.Sidebar.Width(s.width - 1).Height(s.height).MaxHeight(s.height).Render(body)
}

func (s *Sidebar) row(info model.SessionInfo, selected bool, spinner string, width int) string {
	glyph := "·"
	if info.Status == model.SessionProcessing {
		glyph = spinner
		if glyph == "" {
			glyph = "*"
		}
	}

	id := ShortID(info.SessionID)
	name := util.TruncateWidth(info.AgentName, width-util.StringWidth(id)-3)
	line := util.PadRight(glyph+" "+name, width-util.StringWidth(id)) + id

	if selected {
		return s.theme.SessionItemSelected.Render(line)
	}
	if info.Status == model.SessionProcessing {
		return s.theme.SessionBusy.Render(line)
	}
	return s.theme.SessionItem.Render(line)
}

func sessionCount(st *session.State) int {
	if st == nil {
		return 0
	}
	return len(st.Sessions)
}

// visibleRows scrolls rows so that index focus stays on screen.
func visibleRows(rows []string, focus, height int) []string {
	if height <= 0 || len(rows) <= height {
		return rows
	}
	start := 0
	if focus >= height {
		start = focus - height + 1
	}
	return rows[start : start+height]
}
