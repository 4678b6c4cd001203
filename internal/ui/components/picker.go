// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentdesk/internal/ui/styles"
	"github.com/jeranaias/agentdesk/internal/util"
)

// =============================================================================
// PICKER
// =============================================================================

// PickerItem is one selectable row.
type PickerItem struct {
	Title    string
	Detail   string
	Value    string
	Disabled bool
}

// PickerKeyMap holds the picker's navigation bindings.
type PickerKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

// DefaultPickerKeyMap returns arrow and ctrl+p/ctrl+n style navigation.
func DefaultPickerKeyMap() PickerKeyMap {
	return PickerKeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("up", "previous")),
		Down:     key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("down", "next")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
	}
}

// Picker is a fuzzy-filtered list with a query line. Typing narrows the
// list through fzf; selection and cancel are left to the owner.
type Picker struct {
	theme   *styles.Theme
	keys    PickerKeyMap
	matcher *Matcher

	title string
	hint  string
	err   string

	query   textinput.Model
	items   []PickerItem
	matches []Match
	cursor  int

	width  int
	height int
}

// NewPicker creates a focused picker.
func NewPicker(theme *styles.Theme, title string) *Picker {
	q := textinput.New()
	q.Prompt = "/ "
	q.Placeholder = "type to filter"
	q.CharLimit = 256
	q.Focus()

	return &Picker{
		theme:   theme,
		keys:    DefaultPickerKeyMap(),
		matcher: NewMatcher(),
		title:   title,
		query:   q,
		width:   60,
		height:  14,
	}
}

// SetSize sets the outer box size.
func (p *Picker) SetSize(width, height int) {
	p.width, p.height = width, height
	p.query.Width = width - 8
}

// SetTheme swaps the theme.
func (p *Picker) SetTheme(theme *styles.Theme) { p.theme = theme }

// SetTitle replaces the heading.
func (p *Picker) SetTitle(title string) { p.title = title }

// SetHint sets the help line under the list.
func (p *Picker) SetHint(hint string) { p.hint = hint }

// SetError shows an error line; empty clears it.
func (p *Picker) SetError(err string) { p.err = err }

// SetItems replaces the candidates, clears the query and moves to the top.
func (p *Picker) SetItems(items []PickerItem) {
	p.items = items
	p.query.SetValue("")
	p.refilter()
}

// Query returns the filter text.
func (p *Picker) Query() string {
	return p.query.Value()
}

// SetQuery sets the filter text.
func (p *Picker) SetQuery(q string) {
	p.query.SetValue(q)
	p.refilter()
}

// Len is the number of rows passing the filter.
func (p *Picker) Len() int {
	return len(p.matches)
}

// Selected returns the row under the cursor. Disabled rows are not
// selectable.
func (p *Picker) Selected() (PickerItem, bool) {
	if p.cursor < 0 || p.cursor >= len(p.matches) {
		return PickerItem{}, false
	}
	item := p.items[p.matches[p.cursor].Index]
	if item.Disabled {
		return item, false
	}
	return item, true
}

// Update handles navigation keys and feeds the rest to the query line.
func (p *Picker) Update(msg tea.Msg) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, p.keys.Up):
			p.move(-1)
			return nil
		case key.Matches(km, p.keys.Down):
			p.move(1)
			return nil
		case key.Matches(km, p.keys.PageUp):
			p.move(-p.listHeight())
			return nil
		case key.Matches(km, p.keys.PageDown):
			p.move(p.listHeight())
			return nil
		}
	}

	before := p.query.Value()
	var cmd tea.Cmd
	p.query, cmd = p.query.Update(msg)
	if p.query.Value() != before {
		p.refilter()
	}
	return cmd
}

func (p *Picker) move(delta int) {
	if len(p.matches) == 0 {
		p.cursor = 0
		return
	}
	p.cursor += delta
	if p.cursor < 0 {
		p.cursor = 0
	}
	if p.cursor >= len(p.matches) {
		p.cursor = len(p.matches) - 1
	}
}

func (p *Picker) refilter() {
	titles := make([]string, len(p.items))
	for i, item := range p.items {
		titles[i] = item.Title
	}
	p.matches = p.matcher.Filter(p.query.Value(), titles)
	p.cursor = 0
}

// listHeight is the rows left after title, query, hint and border.
func (p *Picker) listHeight() int {
	h := p.height - 6
	if p.err != "" {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

// View renders the picker box.
func (p *Picker) View() string {
	inner := p.width - 4
	if inner < 10 {
		inner = 10
	}

	lines := []string{p.theme.PickerTitle.Render(p.title), p.query.View()}

	rows := make([]string, 0, len(p.matches))
	for i, m := range p.matches {
		rows = append(rows, p.row(p.items[m.Index], m, i == p.cursor, inner))
	}
	if len(rows) == 0 {
		rows = append(rows, p.theme.PickerHint.Render("no matches"))
	}
	lines = append(lines, visibleRows(rows, p.cursor, p.listHeight())...)

	if p.err != "" {
		lines = append(lines, p.theme.StatusError.Render(util.TruncateWidth(styles.StatusIndicators.Error+" "+p.err, inner)))
	}
	if p.hint != "" {
		lines = append(lines, p.theme.PickerHint.Render(util.TruncateWidth(p.hint, inner)))
	}
	return p.theme.PickerBox.Width(p.width - 2).Render(strings.Join(lines, "\n"))
}

func (p *Picker) row(item PickerItem, m Match, selected bool, width int) string {
	title := util.TruncateWidth(item.Title, width-2)
	detail := ""
	if room := width - 2 - util.StringWidth(title) - 2; item.Detail != "" && room > 4 {
		detail = "  " + util.TruncateWidth(item.Detail, room)
	}

	switch {
	case item.Disabled:
		return p.theme.PickerItemDisabled.Render(title) + p.theme.PickerDetail.Render(detail)
	case selected:
		return p.theme.PickerItemSelected.Render(title + detail)
	default:
		return p.theme.PickerItem.Render(Highlight(title, m.Positions, p.theme.PickerMatch)) +
			p.theme.PickerDetail.Render(detail)
	}
}
