// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/agentdesk/internal/ui/styles"
	"github.com/jeranaias/agentdesk/internal/util"
)

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// HighlightCode colors code for the terminal. The lexer is picked from the
// file name, then from the content; unknown input comes back unchanged.
func HighlightCode(code, filename, style string) string {
	lexer := lexers.Match(filename)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return code
	}
	lexer = chroma.Coalesce(lexer)

	chromaStyle := chromaStyles.Get(style)
	if chromaStyle == nil {
		chromaStyle = chromaStyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, chromaStyle, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}

// =============================================================================
// UNIFIED DIFF
// =============================================================================

// RenderDiff colors a unified diff line by line. Lines are cut to width
// display cells; zero means no limit.
func RenderDiff(diff string, width int, theme *styles.Theme) string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		if width > 0 {
			line = util.TruncateWidth(line, width)
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			out = append(out, theme.FilePath.Render(line))
		case strings.HasPrefix(line, "@@"):
			out = append(out, theme.DiffHunk.Render(line))
		case strings.HasPrefix(line, "+"):
			out = append(out, theme.DiffAdd.Render(line))
		case strings.HasPrefix(line, "-"):
			out = append(out, theme.DiffDel.Render(line))
		default:
			out = append(out, theme.DiffContext.Render(line))
		}
	}
	return strings.Join(out, "\n")
}

// DiffStats counts added and removed lines, ignoring file headers.
func DiffStats(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
