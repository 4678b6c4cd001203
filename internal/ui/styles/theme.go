// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Mode selects the color scheme.
type Mode string

const (
	ModeDark  Mode = "dark"
	ModeLight Mode = "light"
	ModeAuto  Mode = "auto"
)

// ParseMode maps a config value onto a Mode. Unknown values mean auto.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDark:
		return ModeDark
	case ModeLight:
		return ModeLight
	default:
		return ModeAuto
	}
}

// Theme contains all the styles for the application.
type Theme struct {
	// Mode the theme was built with
	Mode Mode
	// IsDark is the resolved background, after auto detection
	IsDark bool
	// HasTrueColor indicates if the terminal supports true color
	HasTrueColor bool
	// ColorProfile is the terminal's color profile
	ColorProfile termenv.Profile

	// Width and Height are the terminal dimensions
	Width  int
	Height int

	// ==========================================================================
	// SIDEBAR STYLES
	// ==========================================================================

	Sidebar             lipgloss.Style
	SidebarTitle        lipgloss.Style
	SessionItem         lipgloss.Style
	SessionItemSelected lipgloss.Style
	SessionID           lipgloss.Style
	SessionBusy         lipgloss.Style
	SessionCreating     lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	MessageBody    lipgloss.Style
	Timestamp      lipgloss.Style
	Thinking       lipgloss.Style
	Cursor         lipgloss.Style
	ToolBlock      lipgloss.Style
	ToolName       lipgloss.Style
	ToolArgs       lipgloss.Style
	FileBlock      lipgloss.Style
	FilePath       lipgloss.Style
	DiffAdd        lipgloss.Style
	DiffDel        lipgloss.Style
	DiffHunk       lipgloss.Style
	DiffContext    lipgloss.Style
	EmptyState     lipgloss.Style

	// ==========================================================================
	// INPUT STYLES
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPlaceholder lipgloss.Style
	ErrorBanner      lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar          lipgloss.Style
	StatusConnected    lipgloss.Style
	StatusConnecting   lipgloss.Style
	StatusDisconnected lipgloss.Style
	StatusError        lipgloss.Style
	StatusLabel        lipgloss.Style
	StatusValue        lipgloss.Style
	ShortcutKey        lipgloss.Style
	ShortcutDesc       lipgloss.Style

	// ==========================================================================
	// PICKER STYLES
	// ==========================================================================

	PickerBox          lipgloss.Style
	PickerTitle        lipgloss.Style
	PickerItem         lipgloss.Style
	PickerItemSelected lipgloss.Style
	PickerItemDisabled lipgloss.Style
	PickerDetail       lipgloss.Style
	PickerMatch        lipgloss.Style
	PickerHint         lipgloss.Style
}

// NewTheme creates a theme for mode. Dark and light override the terminal's
// reported background; auto asks the terminal.
func NewTheme(mode Mode) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch mode {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		mode = ModeAuto
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		Mode:         mode,
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// GlamourStyle names the glamour standard style matching the background.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// ChromaStyle names the chroma style used for file previews.
func (t *Theme) ChromaStyle() string {
	if t.IsDark {
		return "monokai"
	}
	return "github"
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		MarginBottom(1)

	t.SessionItem = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SessionItemSelected = lipgloss.NewStyle().
		Background(Purple).
		Foreground(TextInverse).
		Bold(true)

	t.SessionID = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.SessionBusy = lipgloss.NewStyle().
		Foreground(Amber)

	t.SessionCreating = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Transcript
	t.UserLabel = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.AssistantLabel = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.SystemLabel = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Thinking = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		PaddingLeft(2)

	t.Cursor = lipgloss.NewStyle().
		Foreground(Purple)

	t.ToolBlock = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Emerald).
		PaddingLeft(1).
		MarginLeft(2)

	t.ToolName = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.ToolArgs = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.FileBlock = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Amber).
		PaddingLeft(1).
		MarginLeft(2)

	t.FilePath = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.DiffAdd = lipgloss.NewStyle().
		Foreground(Emerald).
		Background(DiffAddBg)

	t.DiffDel = lipgloss.NewStyle().
		Foreground(Rose).
		Background(DiffDelBg)

	t.DiffHunk = lipgloss.NewStyle().
		Foreground(Cyan)

	t.DiffContext = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.EmptyState = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		Padding(1, 2)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ErrorBanner = lipgloss.NewStyle().
		Foreground(Rose).
		Background(RoseDeep).
		Bold(true).
		Padding(0, 1)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusConnected = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.StatusConnecting = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.StatusDisconnected = lipgloss.NewStyle().
		Foreground(TextMuted).
		Bold(true)

	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.StatusLabel = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatusValue = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Pickers
	t.PickerBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)

	t.PickerTitle = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.PickerItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1)

	t.PickerItemSelected = lipgloss.NewStyle().
		Background(Purple).
		Foreground(TextInverse).
		Bold(true).
		Padding(0, 1)

	t.PickerItemDisabled = lipgloss.NewStyle().
		Foreground(TextMuted).
		Strikethrough(true).
		Padding(0, 1)

	t.PickerDetail = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.PickerMatch = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.PickerHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, no sidebar
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// SidebarWidth is the session list width for the layout, zero when hidden.
func (t *Theme) SidebarWidth() int {
	switch t.GetLayoutMode() {
	case LayoutNarrow:
		return 0
	case LayoutMedium:
		return 24
	default:
		return 32
	}
}
