// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the building blocks of the agentdesk TUI.

Components read engine snapshots (session.State) and render them with the
styles package. None of them talk to the engine; the chat model owns input
and turns it into intents.

# Key Types

  - Transcript: renders a session's messages. Agent text goes through
    glamour and file previews through chroma. Closed messages are cached.
  - Sidebar: the live session list with busy and creating markers
  - StatusBar: connection state, active session, model config, tokens
  - Picker: a fuzzy-filtered list used for the agent and directory pickers
  - Matcher: fzf's V2 algorithm over short candidate lists

# Usage

	tr := components.NewTranscript(theme)
	tr.SetWidth(100)
	content := tr.Render(state.ActiveMessages())

	p := components.NewPicker(theme, "Choose an agent")
	p.SetItems(items)
	cmd := p.Update(keyMsg)
	if item, ok := p.Selected(); ok { ... }
*/
package components
