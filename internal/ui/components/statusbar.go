// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/session"
	"github.com/jeranaias/agentdesk/internal/ui/styles"
	"github.com/jeranaias/agentdesk/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusBar shows the connection state and the active session's model and
// token usage on one line.
type StatusBar struct {
	theme *styles.Theme
	width int

	status     model.ConnectionStatus
	agent      string
	sessionID  string
	busy       bool
	modelCfg   *model.ModelConfig
	usage      *model.TokenUsage
	showTokens bool
	spinner    string
	hint       string
}

// NewStatusBar creates a new status bar component.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		theme:      theme,
		width:      80,
		showTokens: true,
		hint:       "ctrl+n new  f1 help",
	}
}

// SetWidth sets the width of the status bar.
func (s *StatusBar) SetWidth(width int) {
	s.width = width
}

// SetTheme swaps the theme.
func (s *StatusBar) SetTheme(theme *styles.Theme) {
	s.theme = theme
}

// SetShowTokens toggles the token usage segment.
func (s *StatusBar) SetShowTokens(on bool) {
	s.showTokens = on
}

// SetSpinner sets the frame drawn beside a busy session.
func (s *StatusBar) SetSpinner(frame string) {
	s.spinner = frame
}

// SetHint sets the key hint shown on the right in wide layouts.
func (s *StatusBar) SetHint(hint string) {
	s.hint = hint
}

// Update copies what the bar shows from a state snapshot.
func (s *StatusBar) Update(st *session.State) {
	s.agent, s.sessionID, s.busy = "", "", false
	s.modelCfg, s.usage = nil, nil
	if st == nil {
		s.status = model.StatusDisconnected
		return
	}

	s.status = st.Status
	info, ok := st.ActiveSession()
	if !ok {
		return
	}
	s.agent = info.AgentName
	s.sessionID = info.SessionID
	s.busy = info.Status == model.SessionProcessing
	s.modelCfg = st.EffectiveModelConfig(info.SessionID)
	s.usage = st.Metadata[info.SessionID].TokenUsage
}

// View renders the status bar.
func (s *StatusBar) View() string {
	segments := []string{s.renderStatus()}

	if s.agent != "" {
		sess := s.agent + " " + s.theme.SessionID.Render(ShortID(s.sessionID))
		if s.busy {
			sess += " " + s.theme.SessionBusy.Render(strings.TrimSpace(s.spinner+" working"))
		}
		segments = append(segments, sess)
	}

	if s.theme.GetLayoutMode() != styles.LayoutNarrow {
		if s.modelCfg != nil {
			segments = append(segments, s.theme.StatusValue.Render(s.modelCfg.String()))
		}
	}
	if s.showTokens && s.usage != nil {
		segments = append(segments, s.renderTokens())
	}

	content := strings.Join(segments, s.theme.StatusLabel.Render(" | "))
	if s.theme.GetLayoutMode() == styles.LayoutWide && s.hint != "" {
		gap := s.width - 2 - lipgloss.Width(content) - util.StringWidth(s.hint)
		if gap > 1 {
			content += strings.Repeat(" ", gap) + s.theme.ShortcutDesc.Render(s.hint)
		}
	}
	return s.theme.StatusBar.Width(s.width).MaxWidth(s.width).Render(content)
}

func (s *StatusBar) renderStatus() string {
	label := s.status.String()
	switch s.status {
	case model.StatusConnected:
		return s.theme.StatusConnected.Render(styles.StatusIndicators.Active + " " + label)
	case model.StatusConnecting:
		return s.theme.StatusConnecting.Render(styles.StatusIndicators.Pending + " " + label)
	case model.StatusError:
		return s.theme.StatusError.Render(styles.StatusIndicators.Error + " " + label)
	default:
		return s.theme.StatusDisconnected.Render(styles.StatusIndicators.Warning + " " + label)
	}
}

func (s *StatusBar) renderTokens() string {
	total := TotalTokens(s.usage)
	out := s.theme.StatusLabel.Render("tokens ") + s.theme.StatusValue.Render(util.FormatCount(total))
	if s.theme.GetLayoutMode() == styles.LayoutWide && (s.usage.InputTokens > 0 || s.usage.OutputTokens > 0) {
		out += s.theme.StatusLabel.Render(" (in " + util.FormatCount(s.usage.InputTokens) +
			" / out " + util.FormatCount(s.usage.OutputTokens) + ")")
	}
	return out
}

// TotalTokens is the reported total, or input plus output when the agent
// sent no total.
func TotalTokens(u *model.TokenUsage) int64 {
	if u == nil {
		return 0
	}
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}

// ShortID returns the first eight characters of a session ID.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
