// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/agentdesk/internal/clock"
	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/protocol"
	"github.com/jeranaias/agentdesk/internal/session"
)

// =============================================================================
// FAKE TRANSPORT
// =============================================================================

type fakeTransport struct {
	mu        sync.Mutex
	status    model.ConnectionStatus
	sent      []protocol.Command
	connects  int
	onStatus  func(model.ConnectionStatus)
	onMessage func([]byte)
}

func (f *fakeTransport) Connect() {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()
}

func (f *fakeTransport) Disconnect() {}

func (f *fakeTransport) Send(cmd protocol.Command) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != model.StatusConnected {
		return false
	}
	f.sent = append(f.sent, cmd)
	return true
}

func (f *fakeTransport) Status() model.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTransport) SetHandlers(onStatus func(model.ConnectionStatus), onMessage func([]byte)) {
	f.onStatus = onStatus
	f.onMessage = onMessage
}

func (f *fakeTransport) setStatus(s model.ConnectionStatus) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
	f.onStatus(s)
}

func (f *fakeTransport) frame(s string) {
	f.onMessage([]byte(s))
}

func (f *fakeTransport) commands() []protocol.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Command(nil), f.sent...)
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	eng   *Engine
	tr    *fakeTransport
	clock *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{tr: &fakeTransport{}, clock: clock.Fake(time.Unix(1_700_000_000, 0))}
	h.eng = New(h.tr, WithClock(h.clock), WithCreationTimeout(30*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.eng.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// state waits for queued events and returns the published snapshot.
func (h *harness) state(t *testing.T) *session.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.eng.Sync(ctx))
	return h.eng.Snapshot()
}

func (h *harness) connected(t *testing.T) {
	t.Helper()
	h.tr.setStatus(model.StatusConnecting)
	h.tr.setStatus(model.StatusConnected)
	h.state(t)
}

// =============================================================================
// CONNECTION TESTS
// =============================================================================

func TestEngine_CatalogRefreshOnConnect(t *testing.T) {
	h := newHarness(t)
	h.eng.Connect()
	h.connected(t)

	assert.Equal(t, 1, h.tr.connects)
	assert.Equal(t, []protocol.Command{protocol.ListAgents{}, protocol.ListSessions{}}, h.tr.commands())
	assert.Equal(t, model.StatusConnected, h.state(t).Status)

	// Every reconnect resynchronizes.
	h.tr.setStatus(model.StatusDisconnected)
	h.connected(t)
	assert.Len(t, h.tr.commands(), 4)
}

func TestEngine_MalformedFramesDropped(t *testing.T) {
	h := newHarness(t)
	before := h.state(t)

	h.tr.frame(`not json`)
	h.tr.frame(`{"type":"mystery","session_id":"s1"}`)
	h.tr.frame(`{"type":"content_delta","content":"orphan"}`)

	after := h.state(t)
	assert.Same(t, before, after)
}

func TestEngine_FrameLog(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	tr := &fakeTransport{}
	eng := New(tr, WithFrameLog(true))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	tr.frame(`{"type":"session_list","sessions":[]}`)
	tr.frame(`{"type":"mystery","pad":"` + strings.Repeat("x", 2*maxFrameLog) + `"}`)
	require.NoError(t, eng.Sync(ctx))

	out := buf.String()
	assert.Contains(t, out, `FRAME_IN | bytes=37 data={"type":"session_list","sessions":[]}`)
	assert.NotContains(t, out, strings.Repeat("x", maxFrameLog))
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestEngine_DeltaToolCallScenario(t *testing.T) {
	h := newHarness(t)
	h.tr.frame(`{"type":"session_created","session_id":"s1","agent_name":"codex"}`)
	h.tr.frame(`{"type":"content_delta","session_id":"s1","content":"Hel"}`)
	h.tr.frame(`{"type":"content_delta","session_id":"s1","content":"lo"}`)

	msgs := h.state(t).Messages["s1"]
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.True(t, msgs[0].IsStreaming)

	h.tr.frame(`{"type":"tool_call","session_id":"s1","tool_name":"grep","args":{}}`)
	msgs = h.state(t).Messages["s1"]
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].IsStreaming)
	assert.Equal(t, model.ToolStatusRunning, msgs[1].ToolCall.Status)
}

func TestEngine_ErrorWithoutActiveSession(t *testing.T) {
	h := newHarness(t)
	h.tr.frame(`{"type":"error","message":"boom"}`)
	st := h.state(t)
	assert.Equal(t, "boom", st.LastError)
	assert.Empty(t, st.Messages)
}

// =============================================================================
// CREATION TESTS
// =============================================================================

func TestEngine_CreationTimeout(t *testing.T) {
	h := newHarness(t)
	h.connected(t)

	h.eng.CreateSession("codex", "/work", nil)
	st := h.state(t)
	assert.True(t, st.IsCreating())
	assert.Equal(t, "codex", st.CreatingSessionAgentID)

	h.clock.Advance(29 * time.Second)
	assert.True(t, h.state(t).IsCreating())

	h.clock.Advance(time.Second)
	st = h.state(t)
	assert.False(t, st.IsCreating())
	assert.Equal(t, session.ErrTextCreationTimeout, st.LastError)
	version := st.Version

	// Nothing else fires.
	h.clock.Advance(time.Hour)
	assert.Equal(t, version, h.state(t).Version)

	// A late answer registers the session but does not bring back pending.
	h.tr.frame(`{"type":"session_created","session_id":"s9","agent_name":"codex"}`)
	st = h.state(t)
	assert.False(t, st.IsCreating())
	assert.Equal(t, "s9", st.ActiveSessionID)
	assert.Empty(t, st.LastError)
}

func TestEngine_CreationResolvedCancelsTimer(t *testing.T) {
	h := newHarness(t)
	h.connected(t)

	h.eng.CreateSession("codex", "/work", nil)
	h.state(t)
	require.Equal(t, 1, h.clock.PendingCount())

	h.tr.frame(`{"type":"session_created","session_id":"s1","agent_name":"codex"}`)
	st := h.state(t)
	assert.False(t, st.IsCreating())
	assert.Equal(t, 0, h.clock.PendingCount())

	h.clock.Advance(time.Minute)
	assert.Empty(t, h.state(t).LastError)
}

func TestEngine_CreationErrorCancelsTimer(t *testing.T) {
	h := newHarness(t)
	h.connected(t)

	h.eng.CreateSession("ghost", "/work", nil)
	h.tr.frame(`{"type":"error","message":"create session failed: agent not found"}`)
	st := h.state(t)
	assert.False(t, st.IsCreating())
	assert.Equal(t, "create session failed: agent not found", st.LastError)
	assert.Equal(t, 0, h.clock.PendingCount())
}

func TestEngine_CreateWhileDisconnected(t *testing.T) {
	h := newHarness(t)
	h.eng.CreateSession("codex", "/work", nil)
	st := h.state(t)
	assert.False(t, st.IsCreating())
	assert.Equal(t, session.ErrTextNotConnected, st.LastError)
	assert.Equal(t, 0, h.clock.PendingCount())
}

func TestEngine_RememberedConfigSentAndAttached(t *testing.T) {
	h := newHarness(t)
	h.connected(t)
	remembered := &model.ModelConfig{Model: "o3", ReasoningEffort: model.ReasoningHigh}
	h.eng.SetAgentModelConfig("codex", remembered)

	h.eng.CreateSession("codex", "/work", nil)
	h.state(t)
	cmds := h.tr.commands()
	create, ok := cmds[len(cmds)-1].(protocol.CreateSession)
	require.True(t, ok)
	assert.True(t, create.ModelConfig.Equal(remembered))

	h.tr.frame(`{"type":"session_created","session_id":"s1","agent_name":"codex"}`)
	assert.True(t, h.state(t).Metadata["s1"].ModelConfig.Equal(remembered))
}

func TestEngine_ExplicitConfigWins(t *testing.T) {
	h := newHarness(t)
	h.connected(t)
	h.eng.SetAgentModelConfig("codex", &model.ModelConfig{Model: "o3"})

	h.eng.CreateSession("codex", "/work", &model.ModelConfig{Model: " gpt-5 "})
	h.state(t)
	cmds := h.tr.commands()
	create := cmds[len(cmds)-1].(protocol.CreateSession)
	assert.Equal(t, "gpt-5", create.ModelConfig.Model)
}

// =============================================================================
// PROMPT TESTS
// =============================================================================

func TestEngine_SendPromptWhileDisconnectedKeepsMessage(t *testing.T) {
	h := newHarness(t)
	h.tr.frame(`{"type":"session_created","session_id":"s1","agent_name":"codex"}`)

	h.eng.SendPrompt("s1", "hello")
	st := h.state(t)
	msgs := st.Messages["s1"]
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, model.RoleSystem, msgs[1].Role)
	assert.Equal(t, session.ErrTextNotConnected, st.LastError)
}

func TestEngine_SendPromptConnected(t *testing.T) {
	h := newHarness(t)
	h.connected(t)
	h.tr.frame(`{"type":"session_created","session_id":"s1","agent_name":"codex"}`)

	h.eng.SendPrompt("s1", "hello")
	st := h.state(t)
	assert.Len(t, st.Messages["s1"], 1)
	assert.Empty(t, st.LastError)
	cmds := h.tr.commands()
	assert.Equal(t, protocol.SendPrompt{SessionID: "s1", Prompt: "hello"}, cmds[len(cmds)-1])
}

func TestEngine_CloseAndRemoveSession(t *testing.T) {
	h := newHarness(t)
	h.connected(t)
	h.tr.frame(`{"type":"session_created","session_id":"s1","agent_name":"codex"}`)
	h.tr.frame(`{"type":"session_created","session_id":"s2","agent_name":"codex"}`)

	h.eng.CloseSession("s1")
	st := h.state(t)
	_, ok := st.Session("s1")
	assert.True(t, ok, "close waits for the server")
	cmds := h.tr.commands()
	assert.Equal(t, protocol.CloseSession{SessionID: "s1"}, cmds[len(cmds)-1])

	h.eng.RemoveSession("s2")
	st = h.state(t)
	_, ok = st.Session("s2")
	assert.False(t, ok)
	assert.Equal(t, "s1", st.ActiveSessionID)
}

// =============================================================================
// SUBSCRIPTION TESTS
// =============================================================================

func TestEngine_SubscribeDeliversLatest(t *testing.T) {
	h := newHarness(t)
	updates, cancel := h.eng.Subscribe()
	defer cancel()

	first := <-updates
	assert.Equal(t, uint64(0), first.Version)

	h.tr.frame(`{"type":"session_created","session_id":"s1","agent_name":"codex"}`)
	h.tr.frame(`{"type":"content_delta","session_id":"s1","content":"x"}`)
	latest := h.state(t)

	got := <-updates
	assert.Equal(t, latest.Version, got.Version)
	select {
	case extra := <-updates:
		t.Fatalf("stale snapshot queued: version %d", extra.Version)
	default:
	}

	cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestEngine_RunTwice(t *testing.T) {
	h := newHarness(t)
	h.state(t)
	assert.ErrorIs(t, h.eng.Run(context.Background()), errAlreadyRunning)
}
