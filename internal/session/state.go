// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"maps"
	"slices"

	"github.com/jeranaias/agentdesk/internal/model"
)

// =============================================================================
// STATE SNAPSHOT
// =============================================================================

// State is one immutable snapshot of the client model. Never modify a State
// obtained from a Machine; all fields are shared with later snapshots.
type State struct {
	// Version increases by one on every transition.
	Version uint64

	// Connection
	Status model.ConnectionStatus

	// Catalog
	Agents   []model.AgentInfo
	Sessions []model.SessionInfo

	// Per-session data keyed by session ID
	Messages map[string][]model.ChatMessage
	Metadata map[string]model.SessionMetadata

	// AgentModelConfigs is the remembered model config per agent key.
	AgentModelConfigs map[string]*model.ModelConfig

	// ActiveSessionID is empty or the ID of a listed session.
	ActiveSessionID string

	// CreatingSessionAgentID is set while a create_session is unanswered.
	CreatingSessionAgentID string
	// CreationAttempt identifies the pending (or last) creation attempt.
	CreationAttempt uint64

	// LastError is the newest error text, overwritten by each error.
	LastError string
}

func newState() *State {
	return &State{
		Messages:          map[string][]model.ChatMessage{},
		Metadata:          map[string]model.SessionMetadata{},
		AgentModelConfigs: map[string]*model.ModelConfig{},
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// Session returns the listed session with the given ID.
func (s *State) Session(id string) (model.SessionInfo, bool) {
	if i := s.sessionIndex(id); i >= 0 {
		return s.Sessions[i], true
	}
	return model.SessionInfo{}, false
}

// ActiveSession returns the active session, if any.
func (s *State) ActiveSession() (model.SessionInfo, bool) {
	if s.ActiveSessionID == "" {
		return model.SessionInfo{}, false
	}
	return s.Session(s.ActiveSessionID)
}

// ActiveMessages returns the transcript of the active session.
func (s *State) ActiveMessages() []model.ChatMessage {
	return s.Messages[s.ActiveSessionID]
}

// Agent returns the catalog entry with the given ID.
func (s *State) Agent(id string) (model.AgentInfo, bool) {
	for _, a := range s.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return model.AgentInfo{}, false
}

// IsCreating reports whether a session creation is pending.
func (s *State) IsCreating() bool {
	return s.CreatingSessionAgentID != ""
}

// AgentModelConfig returns the remembered config for an agent ID or name.
func (s *State) AgentModelConfig(agent string) *model.ModelConfig {
	return s.AgentModelConfigs[s.agentKey(agent)]
}

// EffectiveModelConfig returns the config that applies to a session: its
// own config when set, otherwise the remembered default of its agent.
func (s *State) EffectiveModelConfig(sessionID string) *model.ModelConfig {
	if cfg := s.Metadata[sessionID].ModelConfig; cfg != nil {
		return cfg
	}
	info, ok := s.Session(sessionID)
	if !ok {
		return nil
	}
	if info.ModelConfig != nil {
		return info.ModelConfig
	}
	return s.AgentModelConfig(info.AgentName)
}

func (s *State) sessionIndex(id string) int {
	return slices.IndexFunc(s.Sessions, func(info model.SessionInfo) bool {
		return info.SessionID == id
	})
}

// agentKey maps an agent name as reported by the orchestrator onto the
// catalog ID, matching either the ID or the display name. Unknown names are
// used as is.
func (s *State) agentKey(name string) string {
	for _, a := range s.Agents {
		if a.ID == name || a.DisplayName == name {
			return a.ID
		}
	}
	return name
}

// =============================================================================
// COPY ON WRITE
// =============================================================================

// next returns a shallow copy with the version bumped. Callers replace any
// map or slice they change through the with* helpers.
func (s *State) next() *State {
	n := *s
	n.Version++
	return &n
}

func (s *State) withMessages(id string, msgs []model.ChatMessage) {
	m := maps.Clone(s.Messages)
	m[id] = msgs
	s.Messages = m
}

func (s *State) withMetadata(id string, md model.SessionMetadata) {
	m := maps.Clone(s.Metadata)
	m[id] = md
	s.Metadata = m
}

func (s *State) withAgentConfig(key string, cfg *model.ModelConfig) {
	m := maps.Clone(s.AgentModelConfigs)
	if cfg == nil {
		delete(m, key)
	} else {
		m[key] = cfg
	}
	s.AgentModelConfigs = m
}

// ensureSlots creates empty transcript and metadata entries for ids that
// lack them. Maps are cloned at most once.
func (s *State) ensureSlots(ids ...string) {
	var msgs map[string][]model.ChatMessage
	var meta map[string]model.SessionMetadata
	for _, id := range ids {
		if _, ok := s.Messages[id]; !ok {
			if msgs == nil {
				msgs = maps.Clone(s.Messages)
				s.Messages = msgs
			}
			msgs[id] = []model.ChatMessage{}
		}
		if _, ok := s.Metadata[id]; !ok {
			if meta == nil {
				meta = maps.Clone(s.Metadata)
				s.Metadata = meta
			}
			meta[id] = model.SessionMetadata{}
		}
	}
}

// removeSession drops a session with its transcript and metadata and moves
// the active selection if needed.
func (s *State) removeSession(id string) {
	idx := s.sessionIndex(id)
	if idx >= 0 {
		s.Sessions = slices.Delete(slices.Clone(s.Sessions), idx, idx+1)
	}
	if _, ok := s.Messages[id]; ok {
		m := maps.Clone(s.Messages)
		delete(m, id)
		s.Messages = m
	}
	if _, ok := s.Metadata[id]; ok {
		m := maps.Clone(s.Metadata)
		delete(m, id)
		s.Metadata = m
	}
	if s.ActiveSessionID == id {
		s.ActiveSessionID = firstSessionID(s.Sessions)
	}
}

func firstSessionID(sessions []model.SessionInfo) string {
	if len(sessions) == 0 {
		return ""
	}
	return sessions[0].SessionID
}

// closeStreaming returns msgs with a streaming tail message closed. The
// input slice is never modified.
func closeStreaming(msgs []model.ChatMessage) []model.ChatMessage {
	n := len(msgs)
	if n == 0 || !msgs[n-1].IsStreaming {
		return msgs
	}
	out := slices.Clone(msgs)
	out[n-1] = out[n-1].Closed()
	return out
}

// appendMessage closes any streaming tail and appends msg to a fresh slice.
func appendMessage(msgs []model.ChatMessage, msg model.ChatMessage) []model.ChatMessage {
	closed := closeStreaming(msgs)
	return append(slices.Clip(closed), msg)
}

// replaceLast returns a copy of msgs with the last element replaced.
func replaceLast(msgs []model.ChatMessage, msg model.ChatMessage) []model.ChatMessage {
	out := slices.Clone(msgs)
	out[len(out)-1] = msg
	return out
}
