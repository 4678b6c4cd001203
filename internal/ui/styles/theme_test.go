// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"dark", ModeDark},
		{" Light ", ModeLight},
		{"auto", ModeAuto},
		{"", ModeAuto},
		{"solarized", ModeAuto},
	}
	for _, tc := range tests {
		if got := ParseMode(tc.in); got != tc.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewThemeForcedModes(t *testing.T) {
	dark := NewTheme(ModeDark)
	if !dark.IsDark || dark.GlamourStyle() != "dark" || dark.ChromaStyle() != "monokai" {
		t.Errorf("dark theme resolved to IsDark=%v glamour=%s chroma=%s",
			dark.IsDark, dark.GlamourStyle(), dark.ChromaStyle())
	}
	if !lipgloss.HasDarkBackground() {
		t.Error("dark theme should set the lipgloss background")
	}

	light := NewTheme(ModeLight)
	if light.IsDark || light.GlamourStyle() != "light" || light.ChromaStyle() != "github" {
		t.Errorf("light theme resolved to IsDark=%v glamour=%s chroma=%s",
			light.IsDark, light.GlamourStyle(), light.ChromaStyle())
	}
	if lipgloss.HasDarkBackground() {
		t.Error("light theme should clear the lipgloss background")
	}
}

func TestNewThemeUnknownModeIsAuto(t *testing.T) {
	theme := NewTheme(Mode("neon"))
	if theme.Mode != ModeAuto {
		t.Errorf("Mode = %q, want auto", theme.Mode)
	}
}

func TestThemeInitStyles(t *testing.T) {
	theme := NewTheme(ModeDark)

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Sidebar", theme.Sidebar},
		{"UserLabel", theme.UserLabel},
		{"AssistantLabel", theme.AssistantLabel},
		{"ToolBlock", theme.ToolBlock},
		{"FileBlock", theme.FileBlock},
		{"DiffAdd", theme.DiffAdd},
		{"InputContainer", theme.InputContainer},
		{"ErrorBanner", theme.ErrorBanner},
		{"StatusBar", theme.StatusBar},
		{"PickerBox", theme.PickerBox},
		{"PickerItemSelected", theme.PickerItemSelected},
	}

	for _, s := range styles {
		if rendered := s.style.Render("test"); rendered == "" {
			t.Errorf("%s style should be initialized", s.name)
		}
	}
}

// =============================================================================
// LAYOUT TESTS
// =============================================================================

func TestThemeSetSize(t *testing.T) {
	theme := NewTheme(ModeDark)
	theme.SetSize(120, 40)
	if theme.Width != 120 || theme.Height != 40 {
		t.Errorf("SetSize(120, 40) = %dx%d", theme.Width, theme.Height)
	}
}

func TestThemeGetLayoutMode(t *testing.T) {
	theme := NewTheme(ModeDark)

	tests := []struct {
		width   int
		want    LayoutMode
		sidebar int
	}{
		{40, LayoutNarrow, 0},
		{59, LayoutNarrow, 0},
		{60, LayoutMedium, 24},
		{99, LayoutMedium, 24},
		{100, LayoutWide, 32},
		{200, LayoutWide, 32},
	}

	for _, tc := range tests {
		theme.SetSize(tc.width, 24)
		if got := theme.GetLayoutMode(); got != tc.want {
			t.Errorf("GetLayoutMode() with width %d = %v, want %v", tc.width, got, tc.want)
		}
		if got := theme.SidebarWidth(); got != tc.sidebar {
			t.Errorf("SidebarWidth() with width %d = %d, want %d", tc.width, got, tc.sidebar)
		}
	}
}
