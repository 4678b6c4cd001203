// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdStatus:
		return "status"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags. Empty strings leave the config value alone.
	ServerURL  string
	APIURL     string
	ConfigPath string
	LogPath    string
	Theme      string
	Debug      bool
	JSON       bool

	// Command-specific
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw holds positional arguments after the command
	Raw []string
}

const usageText = `agentdesk - terminal client for AI coding agents

agentdesk connects to an agent orchestrator over WebSocket, lets you start
sessions with its agents and streams their replies, tool calls and file
changes into a chat view.

Usage:
  agentdesk [flags]              Start the TUI (default)
  agentdesk status [--json]      Probe the orchestrator and list agents
  agentdesk config [subcommand]  Configuration
  agentdesk version              Show version
  agentdesk help                 Show this help

Config Commands:
  agentdesk config show          Show the effective configuration
  agentdesk config get <key>     Print one value (dot notation, e.g. ui.theme)
  agentdesk config set <key> <v> Set and save one value
  agentdesk config list          List all keys
  agentdesk config path          Show the config file path
  agentdesk config reset         Write the defaults

Flags:
`

// newFlagSet builds the global flag set bound to args.
func newFlagSet(args *Args) *pflag.FlagSet {
	fs := pflag.NewFlagSet("agentdesk", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.StringVarP(&args.ServerURL, "server", "s", "", "orchestrator WebSocket URL (e.g. ws://localhost:3001/ws)")
	fs.StringVar(&args.APIURL, "api", "", "filesystem API base URL")
	fs.StringVarP(&args.ConfigPath, "config", "c", "", "config file (default ~/.agentdesk/config.toml)")
	fs.StringVar(&args.LogPath, "log", "", "log file")
	fs.StringVar(&args.Theme, "theme", "", "color theme: dark, light or auto")
	fs.BoolVar(&args.Debug, "debug", false, "log every inbound frame")
	fs.BoolVar(&args.JSON, "json", false, "JSON output for status and config")
	fs.SetInterspersed(true)
	return fs
}

// Parse parses argv (without the program name) into a command and args.
// -h and --help yield CmdHelp.
func Parse(argv []string) (Command, Args, error) {
	var args Args
	fs := newFlagSet(&args)
	fs.Usage = func() {}
	if err := fs.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			return CmdHelp, args, nil
		}
		return CmdHelp, args, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return CmdTUI, args, nil
	}

	cmd, remaining := rest[0], rest[1:]
	args.Raw = remaining
	switch strings.ToLower(cmd) {
	case "status", "s":
		return CmdStatus, args, nil

	case "config":
		parseConfigArgs(&args, remaining)
		return CmdConfig, args, nil

	case "version":
		return CmdVersion, args, nil

	case "help":
		return CmdHelp, args, nil

	default:
		return CmdHelp, args, fmt.Errorf("unknown command: %s", cmd)
	}
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = remaining[0]
	}
	if len(remaining) > 1 {
		args.ConfigKey = remaining[1]
	}
	if len(remaining) > 2 {
		args.ConfigVal = strings.Join(remaining[2:], " ")
	}
}

// ShowHelp writes the usage text and flag defaults.
func ShowHelp(w io.Writer) {
	var args Args
	fmt.Fprint(w, usageText)
	fmt.Fprint(w, newFlagSet(&args).FlagUsages())
}

// ShowVersion writes version information.
func ShowVersion(w io.Writer) {
	fmt.Fprintf(w, "agentdesk %s\n", Version)
	fmt.Fprintf(w, "  Commit:  %s\n", GitCommit)
	fmt.Fprintf(w, "  Built:   %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
