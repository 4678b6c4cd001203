// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/agentdesk/internal/config"
	"github.com/jeranaias/agentdesk/internal/conn"
	"github.com/jeranaias/agentdesk/internal/engine"
	"github.com/jeranaias/agentdesk/internal/fsapi"
	"github.com/jeranaias/agentdesk/internal/model"
	"github.com/jeranaias/agentdesk/internal/session"
	"github.com/jeranaias/agentdesk/internal/ui/components"
)

const (
	// DefaultProbeTimeout bounds the whole status probe.
	DefaultProbeTimeout = 10 * time.Second

	// catalogGrace is how long to wait for the catalog after connecting.
	catalogGrace = 2 * time.Second
)

// =============================================================================
// STATUS DATA
// =============================================================================

// StatusData is what "agentdesk status" reports.
type StatusData struct {
	ServerURL string              `json:"server_url"`
	APIURL    string              `json:"api_url"`
	Connected bool                `json:"connected"`
	Error     string              `json:"error,omitempty"`
	Agents    []model.AgentInfo   `json:"agents"`
	Sessions  []model.SessionInfo `json:"sessions"`
	Cwd       string              `json:"cwd,omitempty"`
	APIError  string              `json:"api_error,omitempty"`
}

// =============================================================================
// HANDLE STATUS
// =============================================================================

// HandleStatus handles the "status" command: it connects once, waits for
// the agent and session catalogs and prints them.
func HandleStatus(ctx context.Context, args Args, w io.Writer) error {
	cfg, err := LoadConfig(args)
	if cfg == nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()
	data := Probe(ctx, cfg)

	if args.JSON {
		resp := NewJSONResponse("status", data)
		if !data.Connected {
			resp.Success = false
			resp.Error = &data.Error
		}
		return resp.Write(w)
	}
	printStatus(w, data)
	if !data.Connected {
		return errors.New("orchestrator unreachable")
	}
	return nil
}

// Probe runs a throwaway engine against the configured orchestrator.
func Probe(ctx context.Context, cfg *config.Config) StatusData {
	data := StatusData{ServerURL: cfg.Server.URL, APIURL: cfg.Server.APIURL}

	opts := cfg.ConnOptions()
	opts.MaxReconnectAttempts = 0
	mgr := conn.NewManager(cfg.Server.URL, conn.WithOptions(opts))
	defer mgr.Close()
	eng := engine.New(mgr)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	updates, unsubscribe := eng.Subscribe()
	defer unsubscribe()
	go func() { _ = eng.Run(runCtx) }()
	eng.Connect()

	st, err := waitForCatalog(ctx, updates)
	if st != nil {
		data.Agents = st.Agents
		data.Sessions = st.Sessions
		data.Connected = st.Status == model.StatusConnected
	}
	if err != nil {
		data.Error = err.Error()
	}

	if cwd, err := fsapi.NewClient(cfg.Server.APIURL).Cwd(ctx); err != nil {
		data.APIError = err.Error()
	} else {
		data.Cwd = cwd
	}
	return data
}

// waitForCatalog returns the first connected snapshot that carries agents,
// or the last connected one once the grace period has passed. Snapshots
// may be coalesced, so any disconnected state newer than the first one
// counts as a failed attempt.
func waitForCatalog(ctx context.Context, updates <-chan *session.State) (*session.State, error) {
	var (
		first *session.State
		last  *session.State
		grace <-chan time.Time
	)
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				return last, errors.New("engine stopped")
			}
			if first == nil {
				first = st
			}
			last = st
			switch st.Status {
			case model.StatusConnected:
				if len(st.Agents) > 0 {
					return st, nil
				}
				if grace == nil {
					grace = time.After(catalogGrace)
				}
			case model.StatusError:
				return st, probeError(st)
			case model.StatusDisconnected:
				if st.Version > first.Version {
					return st, probeError(st)
				}
			}
		case <-grace:
			return last, nil
		case <-ctx.Done():
			return last, fmt.Errorf("timed out: %w", ctx.Err())
		}
	}
}

func probeError(st *session.State) error {
	if st.LastError != "" {
		return errors.New(st.LastError)
	}
	return fmt.Errorf("connection %s", st.Status)
}

// =============================================================================
// OUTPUT
// =============================================================================

func printStatus(w io.Writer, data StatusData) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("agentdesk Status"))
	fmt.Fprintln(w, RenderSeparator(41))

	fmt.Fprintln(w, SectionStyle.Render("Orchestrator"))
	state := RenderStatus("ok") + " connected"
	if !data.Connected {
		state = RenderStatus("error") + " " + data.Error
	}
	fmt.Fprintf(w, "  %s %s\n", RenderLabel("WebSocket"), InfoStyle.Render(data.ServerURL))
	fmt.Fprintf(w, "  %s %s\n", RenderLabel("State"), state)

	api := RenderStatus("ok") + " cwd " + data.Cwd
	if data.APIError != "" {
		api = RenderStatus("warning") + " " + data.APIError
	}
	fmt.Fprintf(w, "  %s %s\n", RenderLabel("Filesystem API"), InfoStyle.Render(data.APIURL))
	fmt.Fprintf(w, "  %s %s\n", RenderLabel(""), api)

	if !data.Connected {
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w, SectionStyle.Render(fmt.Sprintf("Agents (%d)", len(data.Agents))))
	for _, a := range data.Agents {
		mark := RenderStatus("ok")
		if !a.Enabled {
			mark = DimStyle.Render("[-]")
		}
		fmt.Fprintf(w, "  %s %s %s\n", mark, RenderLabel(a.Label()), DimStyle.Render(a.AgentType))
	}

	fmt.Fprintln(w, SectionStyle.Render(fmt.Sprintf("Sessions (%d)", len(data.Sessions))))
	for _, s := range data.Sessions {
		line := fmt.Sprintf("  %s %s %s", components.ShortID(s.SessionID), RenderLabel(s.AgentName), s.Status)
		if s.ModelConfig != nil {
			line += " " + DimStyle.Render(s.ModelConfig.String())
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}
