// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentdesk/internal/fsapi"
	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/session"
	"github.com/jeranaias/agentdesk/internal/ui/components"
)

// Error texts raised by the view itself.
const (
	errTextNoActiveSession = "no active session; press ctrl+n to start one"
	errTextAlreadyCreating = "a session is already being created"
)

// Picker row value prefixes.
const (
	valueUse = "use:"
	valueDir = "dir:"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case stateMsg:
		m.applyState(msg.state)
		return m, waitForState(m.updates)

	case stateClosedMsg:
		return m, tea.Quit

	case ConfigReloadedMsg:
		m.applyUI(msg.UI)
		m.layout()
		log.Printf("UI_CONFIG_APPLIED | theme=%s markdown=%v", m.theme.Mode, msg.UI.Markdown)
		return m, nil

	case dirLoadedMsg:
		return m.handleDirLoaded(msg)

	case placesLoadedMsg:
		return m.handlePlaces(msg)

	case searchDoneMsg:
		return m.handleSearch(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.statusBar.SetSpinner(m.spinner.View())
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	if m.mode == modeChat {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// applyState stores a snapshot and refreshes what depends on it.
func (m *Model) applyState(st *session.State) {
	hadError := m.state != nil && m.state.LastError != ""
	m.state = st
	m.statusBar.Update(st)

	if m.mode == modeAgentPicker && len(st.Agents) != m.agents.Len() && m.agents.Query() == "" {
		m.agents.SetItems(agentItems(st))
	}
	if hadError != (st.LastError != "") {
		m.layout()
	}
	m.refreshTranscript()
}

// refreshTranscript re-renders the viewport when the snapshot changed. It
// follows the tail unless the user scrolled up, and jumps to the bottom when
// the active session changes.
func (m *Model) refreshTranscript() {
	if m.state == nil {
		return
	}
	if m.state.Version == m.shownVersion && m.state.ActiveSessionID == m.shownSession && m.shownVersion != 0 {
		return
	}

	atBottom := m.viewport.AtBottom()
	switched := m.state.ActiveSessionID != m.shownSession
	m.viewport.SetContent(m.transcript.Render(m.state.ActiveMessages()))
	if atBottom || switched {
		m.viewport.GotoBottom()
	}
	m.shownVersion = m.state.Version
	m.shownSession = m.state.ActiveSessionID
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil
	}

	switch m.mode {
	case modeAgentPicker:
		return m.handleAgentPickerKey(msg)
	case modeDirPicker:
		return m.handleDirPickerKey(msg)
	default:
		return m.handleChatKey(msg)
	}
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.state
	if st == nil {
		st = m.engine.Snapshot()
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.submit(st)

	case key.Matches(msg, m.keys.NewSession):
		return m.openAgentPicker(st)

	case key.Matches(msg, m.keys.NextSession):
		m.cycleSession(st, 1)
		return m, nil

	case key.Matches(msg, m.keys.PrevSession):
		m.cycleSession(st, -1)
		return m, nil

	case key.Matches(msg, m.keys.CloseSession):
		if st != nil && st.ActiveSessionID != "" {
			m.engine.CloseSession(st.ActiveSessionID)
		}
		return m, nil

	case key.Matches(msg, m.keys.ForgetSession):
		if st != nil && st.ActiveSessionID != "" {
			m.engine.RemoveSession(st.ActiveSessionID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Reconnect):
		if st != nil && st.Status == model.StatusConnected {
			m.engine.RefreshCatalog()
		} else {
			m.engine.Connect()
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleThinking):
		m.transcript.SetShowThinking(!m.transcript.ShowThinking())
		m.shownVersion = 0
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		if st != nil && st.LastError != "" {
			m.engine.ClearError()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(st *session.State) (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		return m, nil
	}
	if st == nil || st.ActiveSessionID == "" {
		m.engine.ReportError(errTextNoActiveSession)
		return m, nil
	}
	m.engine.SendPrompt(st.ActiveSessionID, prompt)
	m.input.Reset()
	m.viewport.GotoBottom()
	return m, nil
}

func (m *Model) cycleSession(st *session.State, step int) {
	if st == nil || len(st.Sessions) == 0 {
		return
	}
	idx := -1
	for i, info := range st.Sessions {
		if info.SessionID == st.ActiveSessionID {
			idx = i
			break
		}
	}
	n := len(st.Sessions)
	next := ((idx+step)%n + n) % n
	if idx < 0 && step < 0 {
		next = n - 1
	}
	if st.Sessions[next].SessionID != st.ActiveSessionID {
		m.engine.SetActiveSession(st.Sessions[next].SessionID)
	}
}

// =============================================================================
// NEW SESSION FLOW
// =============================================================================

func agentItems(st *session.State) []components.PickerItem {
	items := make([]components.PickerItem, 0, len(st.Agents))
	for _, a := range st.Agents {
		item := components.PickerItem{Title: a.Label(), Detail: a.AgentType, Value: a.ID}
		if !a.Enabled {
			item.Disabled = true
			item.Detail = strings.TrimSpace(a.AgentType + " unavailable")
		}
		items = append(items, item)
	}
	return items
}

func (m Model) openAgentPicker(st *session.State) (tea.Model, tea.Cmd) {
	switch {
	case st == nil || st.Status != model.StatusConnected:
		m.engine.ReportError(session.ErrTextNotConnected)
		return m, nil
	case st.IsCreating():
		m.engine.ReportError(errTextAlreadyCreating)
		return m, nil
	}

	m.agents.SetItems(agentItems(st))
	m.agents.SetError("")
	if len(st.Agents) == 0 {
		m.agents.SetError("the orchestrator reported no agents")
	}
	m.mode = modeAgentPicker
	m.input.Blur()
	return m, nil
}

func (m Model) closePickers() Model {
	m.mode = modeChat
	m.pickAgent = ""
	m.dir = nil
	m.loading = false
	m.input.Focus()
	return m
}

func (m Model) handleAgentPickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m.closePickers(), nil

	case key.Matches(msg, m.keys.Select):
		item, ok := m.agents.Selected()
		if !ok {
			return m, nil
		}
		m.pickAgent = item.Value
		m.mode = modeDirPicker
		m.dir = nil
		m.loading = true
		m.dirs.SetTitle("Project directory for " + item.Title)
		m.dirs.SetItems(nil)
		m.dirs.SetError("")
		return m, loadDir(m.files, m.defaultProject)
	}
	return m, m.agents.Update(msg)
}

func (m Model) handleDirPickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = modeAgentPicker
		m.dir = nil
		m.loading = false
		return m, nil

	case key.Matches(msg, m.keys.Select):
		item, ok := m.dirs.Selected()
		if !ok || m.loading {
			return m, nil
		}
		switch {
		case strings.HasPrefix(item.Value, valueUse):
			path := strings.TrimPrefix(item.Value, valueUse)
			agent := m.pickAgent
			m = m.closePickers()
			m.engine.CreateSession(agent, path, nil)
			return m, nil
		case strings.HasPrefix(item.Value, valueDir):
			m.loading = true
			return m, loadDir(m.files, strings.TrimPrefix(item.Value, valueDir))
		}
		return m, nil

	case key.Matches(msg, m.keys.Parent) && m.dirs.Query() == "":
		if m.dir != nil && m.dir.Parent != nil && !m.loading {
			m.loading = true
			return m, loadDir(m.files, *m.dir.Parent)
		}
		return m, nil

	case key.Matches(msg, m.keys.Places):
		m.loading = true
		return m, loadPlaces(m.files)

	case key.Matches(msg, m.keys.Search):
		q := strings.TrimSpace(m.dirs.Query())
		if q == "" || m.dir == nil {
			return m, nil
		}
		m.loading = true
		return m, searchDirs(m.files, m.dir.Path, q)
	}
	return m, m.dirs.Update(msg)
}

func (m Model) handleDirLoaded(msg dirLoadedMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeDirPicker {
		return m, nil
	}
	m.loading = false
	if msg.err != nil {
		log.Printf("DIR_LIST_FAILED | error=%v", msg.err)
		m.dirs.SetError(msg.err.Error())
		return m, nil
	}

	m.dir = msg.dir
	m.dirs.SetError("")
	if !msg.dir.Accessible {
		m.dirs.SetError("directory is not readable")
	}
	m.dirs.SetItems(dirItems(msg.dir))
	return m, nil
}

func dirItems(dir *fsapi.DirectoryInfo) []components.PickerItem {
	items := []components.PickerItem{{
		Title:  "[use this directory]",
		Detail: dir.Path,
		Value:  valueUse + dir.Path,
	}}
	if dir.Parent != nil {
		items = append(items, components.PickerItem{Title: "..", Detail: *dir.Parent, Value: valueDir + *dir.Parent})
	}
	for _, e := range dir.Directories {
		items = append(items, components.PickerItem{Title: e.Name + "/", Value: valueDir + e.Path})
	}
	return items
}

func (m Model) handlePlaces(msg placesLoadedMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeDirPicker {
		return m, nil
	}
	m.loading = false
	if msg.err != nil {
		m.dirs.SetError(msg.err.Error())
		return m, nil
	}

	items := make([]components.PickerItem, 0, len(msg.entries))
	for _, e := range msg.entries {
		items = append(items, components.PickerItem{Title: e.Name, Detail: e.Path, Value: valueDir + e.Path})
	}
	m.dirs.SetError("")
	m.dirs.SetItems(items)
	return m, nil
}

func (m Model) handleSearch(msg searchDoneMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeDirPicker {
		return m, nil
	}
	m.loading = false
	if msg.err != nil {
		m.dirs.SetError(msg.err.Error())
		return m, nil
	}

	var items []components.PickerItem
	for _, e := range msg.result.Files {
		if e.IsDir {
			items = append(items, components.PickerItem{Title: e.Name + "/", Detail: e.Path, Value: valueDir + e.Path})
		}
	}
	m.dirs.SetItems(items)
	m.dirs.SetError("")
	if len(items) == 0 {
		m.dirs.SetError(fmt.Sprintf("no directories matching %q", msg.query))
	} else if msg.result.Truncated {
		m.dirs.SetError(fmt.Sprintf("showing the first %d matches", len(msg.result.Files)))
	}
	return m, nil
}
