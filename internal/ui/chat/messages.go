// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentdesk/internal/config"
	"github.com/jeranaias/agentdesk/internal/fsapi"
	"github.com/jeranaias/agentdesk/internal/session"
)

// fsTimeout bounds each filesystem API call made by the directory picker.
const fsTimeout = 10 * time.Second

// =============================================================================
// MESSAGES
// =============================================================================

// stateMsg carries a new engine snapshot.
type stateMsg struct {
	state *session.State
}

// stateClosedMsg is sent when the engine stops publishing.
type stateClosedMsg struct{}

// ConfigReloadedMsg carries hot-reloaded UI settings into the program.
type ConfigReloadedMsg struct {
	UI config.UIConfig
}

// dirLoadedMsg is the result of listing a directory.
type dirLoadedMsg struct {
	dir *fsapi.DirectoryInfo
	err error
}

// placesLoadedMsg is the result of the common places lookup.
type placesLoadedMsg struct {
	entries []fsapi.Entry
	err     error
}

// searchDoneMsg is the result of a search below the current directory.
type searchDoneMsg struct {
	query  string
	result *fsapi.SearchResult
	err    error
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitForState blocks on the next snapshot.
func waitForState(ch <-chan *session.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return stateClosedMsg{}
		}
		return stateMsg{state: st}
	}
}

func connectCmd(e Engine) tea.Cmd {
	return func() tea.Msg {
		e.Connect()
		return nil
	}
}

// loadDir lists path, or the server's working directory when path is empty.
func loadDir(files FileBrowser, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fsTimeout)
		defer cancel()

		if path == "" {
			cwd, err := files.Cwd(ctx)
			if err != nil {
				return dirLoadedMsg{err: err}
			}
			path = cwd
		}
		dir, err := files.List(ctx, path)
		return dirLoadedMsg{dir: dir, err: err}
	}
}

func loadPlaces(files FileBrowser) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fsTimeout)
		defer cancel()
		entries, err := files.Common(ctx)
		return placesLoadedMsg{entries: entries, err: err}
	}
}

// searchDirs looks for names containing query below base.
func searchDirs(files FileBrowser, base, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fsTimeout)
		defer cancel()
		res, err := files.Search(ctx, base, fsapi.SearchOptions{
			Pattern: "*" + strings.TrimSpace(query) + "*",
		})
		return searchDoneMsg{query: query, result: res, err: err}
	}
}
