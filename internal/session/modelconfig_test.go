// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/protocol"
)

var catalog = protocol.AgentList{Agents: []model.AgentInfo{
	{ID: "codex", DisplayName: "Codex", AgentType: "codex", Enabled: true},
	{ID: "claude", DisplayName: "Claude Code", AgentType: "claude", Enabled: true},
}}

func TestSessionCreated_StoresConfigAndRemembersForAgent(t *testing.T) {
	m := newTestMachine()
	m.Apply(catalog)
	m.BeginCreation("codex", 1)

	m.Apply(protocol.SessionCreated{
		SessionID:   "s1",
		AgentName:   "Codex",
		ModelConfig: &model.ModelConfig{Model: " o4-mini ", ReasoningEffort: "HIGH"},
	})

	want := &model.ModelConfig{Model: "o4-mini", ReasoningEffort: model.ReasoningHigh}
	st := m.State()
	assert.True(t, st.Metadata["s1"].ModelConfig.Equal(want))
	assert.True(t, st.AgentModelConfigs["codex"].Equal(want))
	info, _ := st.Session("s1")
	assert.True(t, info.ModelConfig.Equal(want))
}

func TestSessionCreated_InheritsRememberedConfig(t *testing.T) {
	m := newTestMachine()
	m.Apply(catalog)
	remembered := &model.ModelConfig{Model: "o3", ReasoningEffort: model.ReasoningMedium}
	m.SetAgentModelConfig("codex", remembered)

	m.BeginCreation("codex", 1)
	m.Apply(protocol.SessionCreated{SessionID: "s1", AgentName: "Codex"})

	st := m.State()
	assert.True(t, st.Metadata["s1"].ModelConfig.Equal(remembered))
	assert.True(t, st.EffectiveModelConfig("s1").Equal(remembered))
}

func TestSessionCreated_WithoutPendingResolvesByDisplayName(t *testing.T) {
	m := newTestMachine()
	m.Apply(catalog)
	m.SetAgentModelConfig("claude", &model.ModelConfig{Model: "opus"})

	m.Apply(protocol.SessionCreated{SessionID: "s1", AgentName: "Claude Code"})

	assert.Equal(t, "opus", m.State().Metadata["s1"].ModelConfig.Model)
}

func TestSessionCreated_EmptyConfigIsAbsent(t *testing.T) {
	m := newTestMachine()
	m.BeginCreation("codex", 1)
	m.Apply(protocol.SessionCreated{SessionID: "s1", AgentName: "codex", ModelConfig: &model.ModelConfig{Model: "  "}})

	st := m.State()
	assert.Nil(t, st.Metadata["s1"].ModelConfig)
	_, ok := st.AgentModelConfigs["codex"]
	assert.False(t, ok)
}

func TestSetSessionModelConfig_PropagatesToAgent(t *testing.T) {
	m := newTestMachine()
	m.Apply(catalog)
	m.Apply(protocol.SessionCreated{SessionID: "s1", AgentName: "Codex"})

	require.True(t, m.SetSessionModelConfig("s1", &model.ModelConfig{Model: "gpt-5", ReasoningEffort: "low"}))
	st := m.State()
	assert.Equal(t, "gpt-5", st.EffectiveModelConfig("s1").Model)
	assert.Equal(t, "gpt-5", st.AgentModelConfig("codex").Model)
	assert.Equal(t, "gpt-5", st.AgentModelConfig("Codex").Model)

	// A second session for the same agent inherits the last used config.
	m.Apply(protocol.SessionCreated{SessionID: "s2", AgentName: "Codex"})
	assert.Equal(t, model.ReasoningLow, m.State().Metadata["s2"].ModelConfig.ReasoningEffort)

	// Clearing a session override keeps the agent default.
	require.True(t, m.SetSessionModelConfig("s2", nil))
	st = m.State()
	assert.Nil(t, st.Metadata["s2"].ModelConfig)
	assert.Equal(t, "gpt-5", st.EffectiveModelConfig("s2").Model)

	assert.False(t, m.SetSessionModelConfig("missing", &model.ModelConfig{Model: "x"}))
}

func TestSessionLevelConfigTakesPrecedence(t *testing.T) {
	m := newTestMachine()
	m.Apply(catalog)
	m.Apply(protocol.SessionCreated{SessionID: "s1", AgentName: "Codex", ModelConfig: &model.ModelConfig{Model: "session"}})
	m.SetAgentModelConfig("codex", &model.ModelConfig{Model: "agent"})

	assert.Equal(t, "session", m.State().EffectiveModelConfig("s1").Model)
	assert.Equal(t, "agent", m.State().AgentModelConfig("codex").Model)
}

func TestSessionList_PropagatesConfigs(t *testing.T) {
	m := newTestMachine()
	m.Apply(catalog)
	m.Apply(protocol.SessionList{Sessions: []protocol.SessionEntry{
		{SessionID: "s1", AgentName: "Codex", Status: "Ready", ModelConfig: &model.ModelConfig{Model: "o3", ReasoningEffort: "bogus"}},
		{SessionID: "s2", AgentName: "Claude Code", Status: "Ready", ModelConfig: &model.ModelConfig{}},
	}})

	st := m.State()
	want := &model.ModelConfig{Model: "o3"}
	assert.True(t, st.Metadata["s1"].ModelConfig.Equal(want))
	assert.True(t, st.AgentModelConfigs["codex"].Equal(want))
	assert.Nil(t, st.Metadata["s2"].ModelConfig)
	_, ok := st.AgentModelConfigs["claude"]
	assert.False(t, ok)
}

func TestSetAgentModelConfig_NilClears(t *testing.T) {
	m := newTestMachine()
	m.SetAgentModelConfig("codex", &model.ModelConfig{Model: "o3"})
	m.SetAgentModelConfig("codex", &model.ModelConfig{})
	assert.Nil(t, m.State().AgentModelConfig("codex"))
}
