// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// =============================================================================
// FUZZY MATCHING
// =============================================================================

// Match is one candidate that survived a Filter.
type Match struct {
	// Index into the slice given to Filter.
	Index int
	// Score is fzf's score; higher is better. Zero for an empty query.
	Score int
	// Positions are the matched rune offsets, ascending.
	Positions []int
}

// Matcher runs fzf's V2 algorithm over short candidate lists. The scratch
// slab is reused between calls, so a Matcher is not safe for concurrent use.
type Matcher struct {
	slab *util.Slab
}

var initScheme sync.Once

// NewMatcher creates a Matcher with its own scratch space.
func NewMatcher() *Matcher {
	initScheme.Do(func() { algo.Init("default") })
	return &Matcher{slab: util.MakeSlab(100*1024, 2048)}
}

// Match scores one candidate. Matching is case-insensitive unless the query
// has an upper-case letter (fzf's smart case).
func (m *Matcher) Match(query, text string) (Match, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Match{}, true
	}

	caseSensitive := hasUpper(query)
	pattern := []rune(query)
	if !caseSensitive {
		pattern = []rune(strings.ToLower(query))
	}

	chars := util.ToChars([]byte(text))
	res, pos := algo.FuzzyMatchV2(caseSensitive, true, true, &chars, pattern, true, m.slab)
	if res.Start < 0 || res.Score <= 0 {
		return Match{}, false
	}

	out := Match{Score: res.Score}
	if pos != nil {
		out.Positions = append([]int(nil), *pos...)
		sort.Ints(out.Positions)
	}
	return out, true
}

// Filter returns the candidates matching query, best first. Ties keep the
// shorter candidate first, then the original order. An empty query keeps
// every candidate in order.
func (m *Matcher) Filter(query string, items []string) []Match {
	out := make([]Match, 0, len(items))
	for i, item := range items {
		match, ok := m.Match(query, item)
		if !ok {
			continue
		}
		match.Index = i
		out = append(out, match)
	}
	if strings.TrimSpace(query) == "" {
		return out
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		return len(items[out[a].Index]) < len(items[out[b].Index])
	})
	return out
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// Highlight renders text with the runes at positions in style.
func Highlight(text string, positions []int, style lipgloss.Style) string {
	if len(positions) == 0 {
		return text
	}

	hit := make(map[int]bool, len(positions))
	for _, p := range positions {
		hit[p] = true
	}

	var b strings.Builder
	var run []rune
	inMatch := false
	flush := func() {
		if len(run) == 0 {
			return
		}
		if inMatch {
			b.WriteString(style.Render(string(run)))
		} else {
			b.WriteString(string(run))
		}
		run = run[:0]
	}

	for i, r := range []rune(text) {
		if hit[i] != inMatch {
			flush()
			inMatch = hit[i]
		}
		run = append(run, r)
	}
	flush()
	return b.String()
}
