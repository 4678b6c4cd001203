// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/agentdesk/internal/config"
	"github.com/jeranaias/agentdesk/internal/fsapi"
	"github.com/jeranaias/agentdesk/internal/mockagent"
)

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		wantCmd  Command
		wantErr  bool
		validate func(*testing.T, Args)
	}{
		{name: "no args starts tui", argv: nil, wantCmd: CmdTUI},
		{
			name:    "global flags",
			argv:    []string{"--server", "ws://host:1/ws", "--api=http://host:1", "--theme", "LIGHT", "--debug"},
			wantCmd: CmdTUI,
			validate: func(t *testing.T, a Args) {
				if a.ServerURL != "ws://host:1/ws" || a.APIURL != "http://host:1" {
					t.Errorf("urls = %q %q", a.ServerURL, a.APIURL)
				}
				if a.Theme != "LIGHT" || !a.Debug {
					t.Errorf("theme=%q debug=%v", a.Theme, a.Debug)
				}
			},
		},
		{
			name:    "status with json after command",
			argv:    []string{"status", "--json"},
			wantCmd: CmdStatus,
			validate: func(t *testing.T, a Args) {
				if !a.JSON {
					t.Error("JSON should be set")
				}
			},
		},
		{name: "status alias", argv: []string{"s"}, wantCmd: CmdStatus},
		{
			name:    "config set joins value",
			argv:    []string{"-c", "/tmp/cfg.toml", "config", "set", "server.default_project", "my", "dir"},
			wantCmd: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if a.ConfigPath != "/tmp/cfg.toml" {
					t.Errorf("ConfigPath = %q", a.ConfigPath)
				}
				if a.Subcommand != "set" || a.ConfigKey != "server.default_project" || a.ConfigVal != "my dir" {
					t.Errorf("got %q %q %q", a.Subcommand, a.ConfigKey, a.ConfigVal)
				}
			},
		},
		{name: "version", argv: []string{"version"}, wantCmd: CmdVersion},
		{name: "help flag", argv: []string{"--help"}, wantCmd: CmdHelp},
		{name: "help command", argv: []string{"help"}, wantCmd: CmdHelp},
		{name: "unknown command", argv: []string{"frobnicate"}, wantCmd: CmdHelp, wantErr: true},
		{name: "unknown flag", argv: []string{"--nope"}, wantCmd: CmdHelp, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := Parse(tt.argv)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if cmd != tt.wantCmd {
				t.Errorf("Parse() cmd = %v, want %v", cmd, tt.wantCmd)
			}
			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

func TestShowHelpListsFlags(t *testing.T) {
	var buf bytes.Buffer
	ShowHelp(&buf)
	for _, want := range []string{"agentdesk status", "--server", "--theme", "--config"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("help missing %q", want)
		}
	}
}

func TestShowVersion(t *testing.T) {
	var buf bytes.Buffer
	ShowVersion(&buf)
	if !strings.HasPrefix(buf.String(), "agentdesk "+Version) {
		t.Errorf("version output = %q", buf.String())
	}
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	ApplyOverrides(cfg, Args{ServerURL: "ws://other:9/ws", Theme: "Light", Debug: true})

	if cfg.Server.URL != "ws://other:9/ws" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Server.APIURL != config.Default().Server.APIURL {
		t.Errorf("APIURL should be untouched, got %q", cfg.Server.APIURL)
	}
	if cfg.UI.Theme != "light" || !cfg.Logging.Debug {
		t.Errorf("theme=%q debug=%v", cfg.UI.Theme, cfg.Logging.Debug)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	args := Args{ConfigPath: filepath.Join(t.TempDir(), "missing.toml")}
	cfg, err := LoadConfig(args)
	if err != nil || cfg == nil {
		t.Fatalf("LoadConfig() = %v, %v", cfg, err)
	}
	if cfg.Server.URL != config.Default().Server.URL {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
}

func TestLoadConfig_RejectsBadOverride(t *testing.T) {
	args := Args{ConfigPath: filepath.Join(t.TempDir(), "missing.toml"), ServerURL: "http://wrong"}
	if _, err := LoadConfig(args); err == nil {
		t.Error("expected a validation error for a non-ws URL")
	}
}

func TestHandleConfig_SetGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var out bytes.Buffer

	set := Args{ConfigPath: path, Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "light"}
	if err := HandleConfig(set, &out); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !strings.Contains(out.String(), "ui.theme = light") {
		t.Errorf("set output = %q", out.String())
	}

	out.Reset()
	get := Args{ConfigPath: path, Subcommand: "get", ConfigKey: "UI.Theme"}
	if err := HandleConfig(get, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out.String()) != "light" {
		t.Errorf("get output = %q, want light", out.String())
	}
}

func TestHandleConfig_SetDoesNotPersistFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	args := Args{
		ConfigPath: path,
		ServerURL:  "ws://flag-only:1/ws",
		Subcommand: "set",
		ConfigKey:  "ui.show_tokens",
		ConfigVal:  "false",
	}
	if err := HandleConfig(args, &bytes.Buffer{}); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Server.URL == "ws://flag-only:1/ws" {
		t.Error("flag override was written to the file")
	}
	if cfg.UI.ShowTokens {
		t.Error("ui.show_tokens should be false")
	}
}

func TestHandleConfig_SetInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	args := Args{ConfigPath: path, Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "neon"}
	if err := HandleConfig(args, &bytes.Buffer{}); err == nil {
		t.Error("expected an error for an invalid theme")
	}

	args = Args{ConfigPath: path, Subcommand: "set", ConfigKey: "ui.nope", ConfigVal: "x"}
	if err := HandleConfig(args, &bytes.Buffer{}); err == nil {
		t.Error("expected an error for an unknown key")
	}

	args = Args{ConfigPath: path, Subcommand: "set"}
	if err := HandleConfig(args, &bytes.Buffer{}); err == nil {
		t.Error("expected an error for a missing key")
	}
}

func TestHandleConfig_ListAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var out bytes.Buffer

	if err := HandleConfig(Args{Subcommand: "list"}, &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), "server.url\n") || !strings.Contains(out.String(), "ui.theme\n") {
		t.Errorf("list output = %q", out.String())
	}

	out.Reset()
	if err := HandleConfig(Args{ConfigPath: path, Subcommand: "path"}, &out); err != nil {
		t.Fatalf("path: %v", err)
	}
	if strings.TrimSpace(out.String()) != path {
		t.Errorf("path output = %q", out.String())
	}
}

func TestHandleConfig_ShowJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var out bytes.Buffer
	if err := HandleConfig(Args{ConfigPath: path, Subcommand: "show", JSON: true}, &out); err != nil {
		t.Fatalf("show: %v", err)
	}

	var resp struct {
		Success bool           `json:"success"`
		Command string         `json:"command"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if !resp.Success || resp.Command != "config show" {
		t.Errorf("resp = %+v", resp)
	}
	if _, ok := resp.Data["server"]; !ok {
		t.Errorf("data has no server section: %v", resp.Data)
	}
}

func TestHandleConfig_Reset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_ = HandleConfig(Args{ConfigPath: path, Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "light"}, &bytes.Buffer{})

	if err := HandleConfig(Args{ConfigPath: path, Subcommand: "reset"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("theme after reset = %q, want dark", cfg.UI.Theme)
	}
}

func TestHandleConfig_UnknownSubcommand(t *testing.T) {
	if err := HandleConfig(Args{Subcommand: "explode"}, &bytes.Buffer{}); err == nil {
		t.Error("expected an error")
	}
}

// =============================================================================
// STATUS TESTS
// =============================================================================

func newOrchestrator(t *testing.T) *httptest.Server {
	t.Helper()
	orch := mockagent.New()
	ws := mockagent.NewHandler(orch)

	mux := http.NewServeMux()
	mux.Handle("GET /ws", ws)
	fsapi.NewLocal().Register(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		ws.CloseAll()
		ts.Close()
		orch.Close()
	})
	return ts
}

func TestHandleStatus_JSON(t *testing.T) {
	ts := newOrchestrator(t)
	host := strings.TrimPrefix(ts.URL, "http://")
	args := Args{
		ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
		ServerURL:  "ws://" + host + "/ws",
		APIURL:     ts.URL,
		JSON:       true,
	}

	var out bytes.Buffer
	if err := HandleStatus(context.Background(), args, &out); err != nil {
		t.Fatalf("HandleStatus: %v", err)
	}

	var resp struct {
		Success bool       `json:"success"`
		Data    StatusData `json:"data"`
	}
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if !resp.Success || !resp.Data.Connected {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Data.Agents) != len(mockagent.DefaultAgents()) {
		t.Errorf("agents = %d, want %d", len(resp.Data.Agents), len(mockagent.DefaultAgents()))
	}
	if resp.Data.Cwd == "" {
		t.Errorf("cwd missing, api error %q", resp.Data.APIError)
	}
}

func TestHandleStatus_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	host := strings.TrimPrefix(ts.URL, "http://")
	ts.Close()

	args := Args{
		ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
		ServerURL:  "ws://" + host + "/ws",
		APIURL:     "http://" + host,
	}
	var out bytes.Buffer
	if err := HandleStatus(context.Background(), args, &out); err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(out.String(), "[X]") {
		t.Errorf("output should mark the failure:\n%s", out.String())
	}
}
