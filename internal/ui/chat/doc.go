// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the main window of the agentdesk client.
//
// The Model subscribes to the session engine and re-renders from each
// snapshot it receives. It never mutates state itself: every key press that
// changes something becomes an engine intent.
//
// # Key Types
//
//   - Model: Bubble Tea model holding the sidebar, transcript and prompt
//   - Engine: the engine methods the view drives
//   - FileBrowser: the filesystem API used by the directory picker
//   - KeyMap: keyboard bindings
//
// # Usage
//
//	m := chat.New(eng, files, chat.WithUIConfig(cfg.UI))
//	defer m.Close()
//	p := tea.NewProgram(m, tea.WithAltScreen())
//	_, err := p.Run()
//
// Hot-reloaded settings are delivered with p.Send(chat.ConfigReloadedMsg{UI: ui}).
package chat
