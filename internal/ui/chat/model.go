// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentdesk/internal/config"
	"github.com/jeranaias/agentdesk/internal/fsapi"
	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/session"
	"github.com/jeranaias/agentdesk/internal/ui/components"
	"github.com/jeranaias/agentdesk/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Engine is the part of engine.Engine the chat view drives.
type Engine interface {
	Snapshot() *session.State
	Subscribe() (<-chan *session.State, func())

	Connect()
	RefreshCatalog()

	CreateSession(agentID, projectPath string, cfg *model.ModelConfig)
	SendPrompt(sessionID, prompt string)
	CloseSession(sessionID string)
	RemoveSession(sessionID string)
	SetActiveSession(sessionID string)

	ReportError(text string)
	ClearError()
}

// FileBrowser is the part of fsapi.Client the directory picker uses.
type FileBrowser interface {
	List(ctx context.Context, path string) (*fsapi.DirectoryInfo, error)
	Common(ctx context.Context) ([]fsapi.Entry, error)
	Cwd(ctx context.Context) (string, error)
	Search(ctx context.Context, basePath string, opts fsapi.SearchOptions) (*fsapi.SearchResult, error)
}

// =============================================================================
// MODEL
// =============================================================================

// mode is which surface has the keyboard.
type mode int

const (
	modeChat mode = iota
	modeAgentPicker
	modeDirPicker
)

// Model is the Bubble Tea model for the whole client window.
type Model struct {
	engine Engine
	files  FileBrowser
	theme  *styles.Theme
	keys   KeyMap

	// Engine snapshots
	state       *session.State
	updates     <-chan *session.State
	unsubscribe func()

	// Components
	transcript *components.Transcript
	sidebar    *components.Sidebar
	statusBar  *components.StatusBar
	agents     *components.Picker
	dirs       *components.Picker

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model

	// New-session flow
	mode      mode
	pickAgent string
	dir       *fsapi.DirectoryInfo
	loading   bool

	ui             config.UIConfig
	defaultProject string

	width    int
	height   int
	showHelp bool

	// What the viewport currently shows
	shownVersion uint64
	shownSession string
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithTheme sets the initial theme.
func WithTheme(theme *styles.Theme) ModelOption {
	return func(m *Model) {
		m.theme = theme
	}
}

// WithUIConfig applies the ui section of the config.
func WithUIConfig(ui config.UIConfig) ModelOption {
	return func(m *Model) {
		m.ui = ui
	}
}

// WithDefaultProject sets the directory the picker opens in.
func WithDefaultProject(path string) ModelOption {
	return func(m *Model) {
		m.defaultProject = path
	}
}

// New creates the chat model and subscribes to the engine.
func New(eng Engine, files FileBrowser, opts ...ModelOption) Model {
	m := Model{
		engine: eng,
		files:  files,
		keys:   DefaultKeyMap(),
		ui:     config.Default().UI,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.theme == nil {
		m.theme = styles.NewTheme(styles.ParseMode(m.ui.Theme))
	}

	ta := textarea.New()
	ta.Placeholder = "Type a prompt... (alt+enter for a new line)"
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = m.keys.Newline
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = m.theme.Cursor

	m.input = ta
	m.spinner = sp
	m.viewport = viewport.New(80, 20)
	m.help = help.New()
	m.help.ShowAll = true

	m.transcript = components.NewTranscript(m.theme)
	m.sidebar = components.NewSidebar(m.theme)
	m.statusBar = components.NewStatusBar(m.theme)
	m.agents = components.NewPicker(m.theme, "New session: choose an agent")
	m.agents.SetHint(agentPickerHint)
	m.dirs = components.NewPicker(m.theme, "Project directory")
	m.dirs.SetHint(dirPickerHint)
	m.applyUI(m.ui)

	m.updates, m.unsubscribe = eng.Subscribe()
	return m
}

// Init starts the snapshot listener, the spinner and the connection.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.updates),
		textarea.Blink,
		m.spinner.Tick,
		connectCmd(m.engine),
	)
}

// Close drops the engine subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// State returns the last snapshot the view received.
func (m Model) State() *session.State {
	return m.state
}

// applyUI pushes UI settings into the components. A theme change rebuilds
// the theme.
func (m *Model) applyUI(ui config.UIConfig) {
	if mode := styles.ParseMode(ui.Theme); mode != m.theme.Mode {
		m.setTheme(styles.NewTheme(mode))
	}
	m.ui = ui
	m.transcript.SetMarkdown(ui.Markdown)
	m.transcript.SetShowThinking(ui.ShowThinking)
	m.statusBar.SetShowTokens(ui.ShowTokens)
	m.shownVersion = 0
}

func (m *Model) setTheme(theme *styles.Theme) {
	theme.SetSize(m.width, m.height)
	m.theme = theme
	m.transcript.SetTheme(theme)
	m.sidebar.SetTheme(theme)
	m.statusBar.SetTheme(theme)
	m.agents.SetTheme(theme)
	m.dirs.SetTheme(theme)
	m.spinner.Style = theme.Cursor
}
