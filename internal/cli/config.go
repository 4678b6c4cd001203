// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/agentdesk/internal/config"
)

// =============================================================================
// CONFIG LOADING
// =============================================================================

// ConfigPath returns the file commands read and write: --config when given,
// otherwise the default TOML path.
func ConfigPath(args Args) string {
	if args.ConfigPath != "" {
		return args.ConfigPath
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "config.toml"
	}
	return path
}

// LoadConfig loads the config named by args and applies the flag
// overrides. A missing --config file falls back to the defaults.
func LoadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		if _, statErr := os.Stat(args.ConfigPath); errors.Is(statErr, os.ErrNotExist) {
			cfg = config.Default()
			cfg.ApplyEnvOverrides()
		} else {
			cfg, err = config.LoadFromPath(args.ConfigPath)
		}
	} else {
		cfg, err = config.Load()
	}
	if cfg == nil {
		return nil, err
	}
	ApplyOverrides(cfg, args)
	if verr := cfg.Validate(); verr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", verr)
	}
	return cfg, err
}

// ApplyOverrides copies the global flags that were set onto cfg.
func ApplyOverrides(cfg *config.Config, args Args) {
	if args.ServerURL != "" {
		cfg.Server.URL = args.ServerURL
	}
	if args.APIURL != "" {
		cfg.Server.APIURL = args.APIURL
	}
	if args.LogPath != "" {
		cfg.Logging.Path = args.LogPath
	}
	if args.Theme != "" {
		cfg.UI.Theme = strings.ToLower(args.Theme)
	}
	if args.Debug {
		cfg.Logging.Debug = true
	}
}

// saveConfig writes cfg to path in the format its extension names.
func saveConfig(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

// loadStored reads the file as stored on disk, without flag overrides, so
// that "config set" never persists a one-off flag.
func loadStored(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return config.LoadFromPath(path)
}

// =============================================================================
// HANDLE CONFIG
// =============================================================================

// HandleConfig handles the "config" command.
func HandleConfig(args Args, w io.Writer) error {
	switch args.Subcommand {
	case "", "show":
		return handleConfigShow(args, w)
	case "get":
		return handleConfigGet(args, w)
	case "set":
		return handleConfigSet(args, w)
	case "list", "keys":
		return handleConfigList(args, w)
	case "path":
		return handleConfigPath(args, w)
	case "reset":
		return handleConfigReset(args, w)
	default:
		return fmt.Errorf("unknown config subcommand: %s", args.Subcommand)
	}
}

func handleConfigShow(args Args, w io.Writer) error {
	cfg, err := LoadConfig(args)
	if cfg == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s (using defaults)\n", err)
	}

	if args.JSON {
		return NewJSONResponse("config show", cfg).Write(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render("agentdesk Configuration"))
	fmt.Fprintln(w, RenderSeparator(41))
	fmt.Fprintf(w, "Config file: %s\n\n", InfoStyle.Render(ConfigPath(args)))

	section := ""
	for _, key := range config.GetAllKeys() {
		head, _, _ := strings.Cut(key, ".")
		if head != section && strings.Contains(key, ".") {
			section = head
			fmt.Fprintln(w, SectionStyle.Render("["+section+"]"))
		}
		value, _ := cfg.Get(key)
		fmt.Fprintf(w, "  %s %v\n", RenderLabel(key, 36), value)
	}
	fmt.Fprintln(w)
	return nil
}

func handleConfigGet(args Args, w io.Writer) error {
	if args.ConfigKey == "" {
		return fmt.Errorf("no config key provided\nUsage: agentdesk config get <key>")
	}
	cfg, err := LoadConfig(args)
	if cfg == nil {
		return err
	}
	value, err := cfg.Get(normalizeKey(args.ConfigKey))
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("config get", map[string]any{"key": args.ConfigKey, "value": value}).Write(w)
	}
	fmt.Fprintf(w, "%v\n", value)
	return nil
}

func handleConfigSet(args Args, w io.Writer) error {
	key, value := normalizeKey(args.ConfigKey), args.ConfigVal
	if key == "" {
		return fmt.Errorf("no config key provided\nUsage: agentdesk config set <key> <value>")
	}
	if value == "" {
		return fmt.Errorf("no config value provided\nUsage: agentdesk config set %s <value>", key)
	}

	path := ConfigPath(args)
	cfg, err := loadStored(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration value: %w", err)
	}
	if err := saveConfig(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(w, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	return nil
}

func handleConfigList(args Args, w io.Writer) error {
	keys := config.GetAllKeys()
	if args.JSON {
		return NewJSONResponse("config list", keys).Write(w)
	}
	for _, key := range keys {
		fmt.Fprintln(w, key)
	}
	return nil
}

func handleConfigPath(args Args, w io.Writer) error {
	path := ConfigPath(args)
	_, err := os.Stat(path)
	exists := err == nil

	if args.JSON {
		return NewJSONResponse("config path", map[string]any{"path": path, "exists": exists}).Write(w)
	}
	fmt.Fprintln(w, path)
	if !exists {
		fmt.Fprintf(os.Stderr, "%s (file does not exist - will be created on first save)\n",
			DimStyle.Render("Note"))
	}
	return nil
}

func handleConfigReset(args Args, w io.Writer) error {
	path := ConfigPath(args)
	if err := saveConfig(config.Default(), path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(w, "%s Configuration reset to defaults\n", SuccessStyle.Render("[OK]"))
	fmt.Fprintf(w, "Config file: %s\n", InfoStyle.Render(path))
	return nil
}

// normalizeKey accepts "ui.show_tokens" and "UI.Show_Tokens" alike.
func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
