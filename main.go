// agentdesk - terminal client for AI coding agents.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentdesk/internal/cli"
	"github.com/jeranaias/agentdesk/internal/config"
	"github.com/jeranaias/agentdesk/internal/conn"
	"github.com/jeranaias/agentdesk/internal/engine"
	"github.com/jeranaias/agentdesk/internal/fsapi"
	"github.com/jeranaias/agentdesk/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args, err := cli.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		cli.ShowHelp(os.Stderr)
		os.Exit(2)
	}

	switch cmd {
	case cli.CmdHelp:
		cli.ShowHelp(os.Stdout)
	case cli.CmdVersion:
		cli.ShowVersion(os.Stdout)
	case cli.CmdConfig:
		err = cli.HandleConfig(args, os.Stdout)
	case cli.CmdStatus:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err = cli.HandleStatus(ctx, args, os.Stdout)
		stop()
	default:
		err = runTUI(args)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(args cli.Args) error {
	if err := cli.RequiresTTY("start the interface"); err != nil {
		return fmt.Errorf("%w (try 'agentdesk status')", err)
	}

	cfg, err := cli.LoadConfig(args)
	if cfg == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	log.Printf("STARTUP | version=%s server=%s api=%s", Version, cfg.Server.URL, cfg.Server.APIURL)

	// Connection and engine
	mgr := conn.NewManager(cfg.Server.URL, conn.WithOptions(cfg.ConnOptions()))
	defer mgr.Close()
	eng := engine.New(mgr,
		engine.WithCreationTimeout(cfg.CreationTimeout()),
		engine.WithFrameLog(cfg.Logging.Debug),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ENGINE_STOPPED | error=%v", err)
		}
	}()

	// UI
	files := fsapi.NewClient(cfg.Server.APIURL)
	m := chat.New(eng, files,
		chat.WithUIConfig(cfg.UI),
		chat.WithDefaultProject(cfg.Server.DefaultProject),
	)
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Hot reload of the ui section
	if w := watchConfig(args, p); w != nil {
		defer w.Close()
	}

	_, err = p.Run()
	cancel()
	<-engineDone
	log.Printf("SHUTDOWN | error=%v", err)
	return err
}

// setupLogging sends the standard logger to the configured file. The TUI
// owns the terminal, so nothing is logged to stderr.
func setupLogging(cfg *config.Config) (func(), error) {
	path, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return func() { f.Close() }, nil
}

// watchConfig reloads the config file on change and pushes the ui section
// into the program. Flag overrides stay in effect across reloads.
func watchConfig(args cli.Args, p *tea.Program) *config.Watcher {
	path := cli.ConfigPath(args)
	if _, err := os.Stat(path); err != nil {
		log.Printf("CONFIG_WATCH_SKIPPED | path=%s error=%v", path, err)
		return nil
	}

	w, err := config.NewWatcher(path, func(cfg *config.Config) {
		cli.ApplyOverrides(cfg, args)
		log.Printf("CONFIG_RELOADED | path=%s theme=%s", path, cfg.UI.Theme)
		p.Send(chat.ConfigReloadedMsg{UI: cfg.UI})
	})
	if err != nil {
		log.Printf("CONFIG_WATCH_FAILED | path=%s error=%v", path, err)
		return nil
	}
	return w
}
