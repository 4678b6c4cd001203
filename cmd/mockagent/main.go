// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// mockagent runs a stand-in orchestrator for developing and testing
// agentdesk without real coding agents.
//
// It serves the WebSocket protocol on /ws and the filesystem API on
// /api/fs/* from one address. Prompts are answered with a scripted stream,
// either the built-in one or a YAML file given with --script.
//
// Usage:
//
//	mockagent [--addr 127.0.0.1:3001] [--script replies.yaml] [--delay 40ms]
//	          [--silent-create] [--root DIR]...
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/jeranaias/agentdesk/internal/fsapi"
	"github.com/jeranaias/agentdesk/internal/mockagent"
	"github.com/jeranaias/agentdesk/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("mockagent", pflag.ContinueOnError)
	addr := flags.String("addr", server.DefaultAddr, "listen address")
	scriptPath := flags.String("script", "", "YAML reply script (default: built-in)")
	delay := flags.Duration("delay", 40*time.Millisecond, "pause between scripted events")
	silent := flags.Bool("silent-create", false, "never answer create_session")
	roots := flags.StringSlice("root", nil, "restrict the filesystem API to these directories (repeatable)")
	ping := flags.Duration("ping", mockagent.DefaultPingInterval, "WebSocket ping interval (0 disables)")
	rateLimit := flags.Float64("rate", 20, "HTTP requests per second per client IP (0 disables)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mockagent [flags]\n\nFlags:\n%s", flags.FlagUsages())
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	opts := []mockagent.OrchestratorOption{
		mockagent.WithStepDelay(*delay),
		mockagent.WithSilentCreate(*silent),
	}
	if *scriptPath != "" {
		script, err := mockagent.LoadScript(*scriptPath)
		if err != nil {
			return err
		}
		opts = append(opts, mockagent.WithScript(script))
		log.Printf("MOCK_SCRIPT_LOADED | path=%s steps=%d", *scriptPath, len(script.Steps))
	}
	orch := mockagent.New(opts...)
	defer orch.Close()

	srv := server.NewServer(*addr, orch, fsapi.NewLocal(fsapi.WithRoots(*roots...)),
		mockagent.WithKeepalive(*ping, mockagent.DefaultPongWait))
	if *rateLimit <= 0 {
		srv.WithRateLimiter(nil)
	} else {
		srv.WithRateLimiter(server.NewRateLimiter(*rateLimit, int(*rateLimit*2)+1))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
