// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/ui/styles"
	"github.com/jeranaias/agentdesk/internal/util"
)

// MaxPreviewLines caps diff and content previews inside file blocks.
const MaxPreviewLines = 20

// streamCursor trails a message that is still streaming.
const streamCursor = "▌"

// =============================================================================
// TRANSCRIPT RENDERER
// =============================================================================

// Transcript renders a session's messages for the viewport.
//
// Closed messages never change, so their rendering is cached by message ID
// until the width, theme or display flags change.
type Transcript struct {
	theme        *styles.Theme
	width        int
	markdown     bool
	showThinking bool

	md      *glamour.TermRenderer
	mdWidth int
	mdStyle string

	cache map[model.MessageID]string
}

// NewTranscript creates a renderer. Markdown is on by default.
func NewTranscript(theme *styles.Theme) *Transcript {
	return &Transcript{
		theme:    theme,
		width:    80,
		markdown: true,
		cache:    make(map[model.MessageID]string),
	}
}

// SetWidth sets the wrap width.
func (t *Transcript) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width != t.width {
		t.width = width
		t.invalidate()
	}
}

// SetTheme swaps the theme.
func (t *Transcript) SetTheme(theme *styles.Theme) {
	t.theme = theme
	t.md = nil
	t.invalidate()
}

// SetMarkdown toggles glamour rendering of agent text.
func (t *Transcript) SetMarkdown(on bool) {
	if on != t.markdown {
		t.markdown = on
		t.invalidate()
	}
}

// SetShowThinking toggles expanded reasoning blocks.
func (t *Transcript) SetShowThinking(on bool) {
	if on != t.showThinking {
		t.showThinking = on
		t.invalidate()
	}
}

// ShowThinking reports whether reasoning blocks are expanded.
func (t *Transcript) ShowThinking() bool {
	return t.showThinking
}

func (t *Transcript) invalidate() {
	t.cache = make(map[model.MessageID]string)
}

// Render returns the whole transcript. Consecutive agent blocks share one
// label.
func (t *Transcript) Render(msgs []model.ChatMessage) string {
	if len(msgs) == 0 {
		return t.theme.EmptyState.Render("No messages yet. Type a prompt and press Enter.")
	}

	var b strings.Builder
	prev := model.Role("")
	for i, msg := range msgs {
		if msg.Role != prev || msg.Role != model.RoleAssistant {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(t.label(msg))
			b.WriteString("\n")
		}
		prev = msg.Role
		b.WriteString(t.message(msg))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t *Transcript) label(msg model.ChatMessage) string {
	var style lipgloss.Style
	switch msg.Role {
	case model.RoleUser:
		style = t.theme.UserLabel
	case model.RoleSystem:
		style = t.theme.SystemLabel
	default:
		style = t.theme.AssistantLabel
	}
	out := style.Render(msg.Role.DisplayName())
	if !msg.Timestamp.IsZero() {
		out += " " + t.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	}
	return out
}

func (t *Transcript) message(msg model.ChatMessage) string {
	if !msg.IsStreaming {
		if out, ok := t.cache[msg.ID]; ok {
			return out
		}
	}

	var out string
	switch {
	case msg.ToolCall != nil:
		out = t.toolBlock(msg.ToolCall)
	case msg.FileChange != nil:
		out = t.fileBlock(msg.FileChange)
	default:
		out = t.textBlock(msg)
	}

	if !msg.IsStreaming {
		t.cache[msg.ID] = out
	}
	return out
}

// =============================================================================
// BLOCK RENDERING
// =============================================================================

func (t *Transcript) textBlock(msg model.ChatMessage) string {
	var parts []string

	if msg.Thinking != nil && *msg.Thinking != "" {
		parts = append(parts, t.thinking(*msg.Thinking))
	}

	if msg.Content != "" || msg.IsStreaming {
		body := msg.Content
		if msg.Role == model.RoleAssistant && t.markdown && !msg.IsStreaming {
			parts = append(parts, t.renderMarkdown(body))
		} else {
			if msg.IsStreaming {
				body += t.theme.Cursor.Render(streamCursor)
			}
			parts = append(parts, t.theme.MessageBody.Width(t.width).Render(body))
		}
	}
	return strings.Join(parts, "\n")
}

func (t *Transcript) thinking(text string) string {
	if t.showThinking {
		return t.theme.Thinking.Width(t.width).Render(text)
	}
	lines := strings.Count(strings.TrimRight(text, "\n"), "\n") + 1
	summary := fmt.Sprintf("%s thinking: %s (%d lines)", styles.StatusIndicators.Info,
		util.FirstLine(text), lines)
	return t.theme.Thinking.Render(util.TruncateWidth(summary, t.width-2))
}

func (t *Transcript) toolBlock(call *model.ToolCall) string {
	var indicator string
	switch call.Status {
	case model.ToolStatusCompleted:
		indicator = styles.StatusIndicators.Success
	case model.ToolStatusFailed:
		indicator = styles.StatusIndicators.Error
	default:
		indicator = styles.StatusIndicators.Active
	}

	head := indicator + " " + t.theme.ToolName.Render(call.ToolName)
	if args := compactJSON(call.Args); args != "" && args != "{}" && args != "null" {
		room := t.width - util.StringWidth(indicator+" "+call.ToolName) - 6
		if room > 8 {
			head += " " + t.theme.ToolArgs.Render(util.TruncateWidth(args, room))
		}
	}
	return t.theme.ToolBlock.Render(head)
}

func (t *Transcript) fileBlock(fc *model.FileChange) string {
	head := string(fc.Action) + " " + t.theme.FilePath.Render(fc.Path)
	inner := t.width - 4

	var body string
	switch {
	case fc.Diff != nil && *fc.Diff != "":
		added, removed := DiffStats(*fc.Diff)
		head += t.theme.ToolArgs.Render(fmt.Sprintf(" (+%d -%d)", added, removed))
		preview, more := clip(*fc.Diff)
		body = RenderDiff(preview, inner, t.theme) + more
	case fc.Content != nil && *fc.Content != "" && fc.Action != model.FileActionRead && fc.Action != model.FileActionDelete:
		preview, more := clip(*fc.Content)
		body = HighlightCode(preview, filepath.Base(fc.Path), t.theme.ChromaStyle()) + more
	}

	if body == "" {
		return t.theme.FileBlock.Render(head)
	}
	return t.theme.FileBlock.Render(head + "\n" + body)
}

// clip cuts text to MaxPreviewLines and describes what was dropped.
func clip(text string) (string, string) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= MaxPreviewLines {
		return strings.Join(lines, "\n"), ""
	}
	return strings.Join(lines[:MaxPreviewLines], "\n"),
		fmt.Sprintf("\n… %d more lines", len(lines)-MaxPreviewLines)
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// =============================================================================
// MARKDOWN
// =============================================================================

func (t *Transcript) renderMarkdown(text string) string {
	style := t.theme.GlamourStyle()
	if t.md == nil || t.mdWidth != t.width || t.mdStyle != style {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(t.width),
		)
		if err != nil {
			log.Printf("MARKDOWN_INIT_FAILED | error=%v", err)
			return t.theme.MessageBody.Width(t.width).Render(text)
		}
		t.md, t.mdWidth, t.mdStyle = r, t.width, style
	}

	out, err := t.md.Render(text)
	if err != nil {
		return t.theme.MessageBody.Width(t.width).Render(text)
	}
	return strings.Trim(out, "\n")
}
