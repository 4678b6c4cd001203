// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"

	"github.com/jeranaias/agentdesk/internal/conn"
	"github.com/jeranaias/agentdesk/internal/util"
)

// CurrentVersion is written into new config files.
const CurrentVersion = "1.0.0"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete agentdesk configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Orchestrator endpoints
	Server ServerConfig `toml:"server" json:"server"`

	// Connection tuning
	Connection ConnectionConfig `toml:"connection" json:"connection"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// ServerConfig holds the orchestrator endpoints.
type ServerConfig struct {
	// URL is the WebSocket endpoint, e.g. ws://localhost:3001/ws
	URL string `toml:"url" json:"url"`
	// APIURL is the base of the filesystem REST API
	APIURL string `toml:"api_url" json:"api_url"`
	// DefaultProject is offered first in the directory picker
	DefaultProject string `toml:"default_project" json:"default_project,omitempty"`
}

// ConnectionConfig holds reconnect and timeout settings. Zero values take
// the defaults; a negative ping interval disables keepalive pings and a
// negative attempt count disables automatic reconnection.
type ConnectionConfig struct {
	ReconnectDelaySecs   int   `toml:"reconnect_delay_secs" json:"reconnect_delay_secs"`
	MaxReconnectAttempts int   `toml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
	HandshakeTimeoutSecs int   `toml:"handshake_timeout_secs" json:"handshake_timeout_secs"`
	WriteTimeoutSecs     int   `toml:"write_timeout_secs" json:"write_timeout_secs"`
	PingIntervalSecs     int   `toml:"ping_interval_secs" json:"ping_interval_secs"`
	PongWaitSecs         int   `toml:"pong_wait_secs" json:"pong_wait_secs"`
	ReadLimitBytes       int64 `toml:"read_limit_bytes" json:"read_limit_bytes"`
	// CreationTimeoutSecs bounds how long a create_session may stay unanswered
	CreationTimeoutSecs int `toml:"creation_timeout_secs" json:"creation_timeout_secs"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// Markdown renders assistant text through glamour
	Markdown bool `toml:"markdown" json:"markdown"`
	// ShowThinking shows thinking blocks expanded in the transcript
	ShowThinking bool `toml:"show_thinking" json:"show_thinking"`
	// ShowTokens displays token usage in the status bar
	ShowTokens bool `toml:"show_tokens" json:"show_tokens"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	// Path is the log file; empty means ~/.agentdesk/agentdesk.log
	Path string `toml:"path" json:"path,omitempty"`
	// Debug logs every inbound frame
	Debug bool `toml:"debug" json:"debug"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,

		Server: ServerConfig{
			URL:    "ws://localhost:3001/ws",
			APIURL: "http://localhost:3001",
		},

		Connection: ConnectionConfig{
			ReconnectDelaySecs:   3,
			MaxReconnectAttempts: 5,
			HandshakeTimeoutSecs: 10,
			WriteTimeoutSecs:     10,
			PingIntervalSecs:     30,
			PongWaitSecs:         60,
			ReadLimitBytes:       4 << 20,
			CreationTimeoutSecs:  30,
		},

		UI: UIConfig{
			Theme:        "dark",
			Markdown:     true,
			ShowThinking: false,
			ShowTokens:   true,
		},
	}
}

// ConnOptions converts the connection section into conn.Options.
func (c *Config) ConnOptions() conn.Options {
	cc := c.Connection
	opts := conn.Options{
		ReconnectDelay:       secs(cc.ReconnectDelaySecs),
		MaxReconnectAttempts: cc.MaxReconnectAttempts,
		HandshakeTimeout:     secs(cc.HandshakeTimeoutSecs),
		WriteTimeout:         secs(cc.WriteTimeoutSecs),
		PongWait:             secs(cc.PongWaitSecs),
		ReadLimit:            cc.ReadLimitBytes,
	}
	if cc.PingIntervalSecs > 0 {
		opts.PingInterval = secs(cc.PingIntervalSecs)
	}
	if opts.MaxReconnectAttempts < 0 {
		opts.MaxReconnectAttempts = 0
	}
	return opts
}

// CreationTimeout returns the session creation deadline.
func (c *Config) CreationTimeout() time.Duration {
	return secs(c.Connection.CreationTimeoutSecs)
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the agentdesk configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".agentdesk"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultLogPath returns ~/.agentdesk/agentdesk.log.
func DefaultLogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "agentdesk.log"), nil
}

// LogPath returns the configured log file or the default one.
func (c *Config) LogPath() (string, error) {
	if c.Logging.Path != "" {
		return c.Logging.Path, nil
	}
	return DefaultLogPath()
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	var loadErr error

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			cfg, err := LoadFromPath(tomlPath)
			if err == nil {
				return cfg, nil
			}
			loadErr = err
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			cfg, err := LoadFromPath(jsonPath)
			if err == nil {
				return cfg, nil
			}
			if loadErr == nil {
				loadErr = err
			}
		}
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// LoadTOML decodes a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file into cfg. Comments and trailing commas are
// allowed.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. The file extension picks the format; anything but .json is
// read as TOML. Keys missing from the file keep their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish runs env overrides, migration, defaults and validation.
func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	if err := c.Migrate(); err != nil {
		return fmt.Errorf("config migration failed: %w", err)
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with a short header. The file is created 0600.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# agentdesk configuration file\n")
	b.WriteString("# Generated by agentdesk - edit with care\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, []byte(b.String()), 0600, 0755); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON. The file is created 0600.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0755); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := validateURL(c.Server.URL, "ws", "wss"); err != "" {
		errs = append(errs, ValidationError{Field: "server.url", Message: err})
	}
	if err := validateURL(c.Server.APIURL, "http", "https"); err != "" {
		errs = append(errs, ValidationError{Field: "server.api_url", Message: err})
	}

	cc := c.Connection
	positive := []struct {
		field string
		value int
	}{
		{"connection.reconnect_delay_secs", cc.ReconnectDelaySecs},
		{"connection.handshake_timeout_secs", cc.HandshakeTimeoutSecs},
		{"connection.write_timeout_secs", cc.WriteTimeoutSecs},
		{"connection.creation_timeout_secs", cc.CreationTimeoutSecs},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, ValidationError{Field: p.field, Message: "must be positive"})
		}
	}
	if cc.MaxReconnectAttempts > 100 {
		errs = append(errs, ValidationError{
			Field:   "connection.max_reconnect_attempts",
			Message: fmt.Sprintf("%d is too many, maximum is 100", cc.MaxReconnectAttempts),
		})
	}
	if cc.PingIntervalSecs > 0 && cc.PongWaitSecs <= cc.PingIntervalSecs {
		errs = append(errs, ValidationError{
			Field:   "connection.pong_wait_secs",
			Message: "must be longer than ping_interval_secs",
		})
	}
	if cc.ReadLimitBytes < 1024 {
		errs = append(errs, ValidationError{
			Field:   "connection.read_limit_bytes",
			Message: "must be at least 1024",
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string, schemes ...string) string {
	if raw == "" {
		return "must not be empty"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid URL: %v", err)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			if u.Host == "" {
				return "missing host"
			}
			return ""
		}
	}
	return fmt.Sprintf("scheme must be one of: %s", strings.Join(schemes, ", "))
}

// SetDefaults sets default values for any missing or zero-value fields.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}

	if c.Server.URL == "" {
		c.Server.URL = d.Server.URL
	}
	if c.Server.APIURL == "" {
		c.Server.APIURL = d.Server.APIURL
	}

	cc := &c.Connection
	if cc.ReconnectDelaySecs == 0 {
		cc.ReconnectDelaySecs = d.Connection.ReconnectDelaySecs
	}
	if cc.MaxReconnectAttempts == 0 {
		cc.MaxReconnectAttempts = d.Connection.MaxReconnectAttempts
	}
	if cc.HandshakeTimeoutSecs == 0 {
		cc.HandshakeTimeoutSecs = d.Connection.HandshakeTimeoutSecs
	}
	if cc.WriteTimeoutSecs == 0 {
		cc.WriteTimeoutSecs = d.Connection.WriteTimeoutSecs
	}
	if cc.PingIntervalSecs == 0 {
		cc.PingIntervalSecs = d.Connection.PingIntervalSecs
	}
	if cc.PongWaitSecs == 0 {
		cc.PongWaitSecs = d.Connection.PongWaitSecs
		if cc.PingIntervalSecs > 0 && cc.PongWaitSecs <= cc.PingIntervalSecs {
			cc.PongWaitSecs = 2 * cc.PingIntervalSecs
		}
	}
	if cc.ReadLimitBytes == 0 {
		cc.ReadLimitBytes = d.Connection.ReadLimitBytes
	}
	if cc.CreationTimeoutSecs == 0 {
		cc.CreationTimeoutSecs = d.Connection.CreationTimeoutSecs
	}

	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// Migrate handles migration from old configuration formats to new ones.
func (c *Config) Migrate() error {
	c.UI.Theme = strings.ToLower(c.UI.Theme)

	// Early builds took an http(s) server.url; the socket lives at /ws.
	u, err := url.Parse(c.Server.URL)
	if err != nil || c.Server.URL == "" {
		return nil
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	c.Server.URL = u.String()
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - AGENTDESK_SERVER_URL: overrides server.url
//   - AGENTDESK_API_URL: overrides server.api_url
//   - AGENTDESK_LOG: overrides logging.path
//   - AGENTDESK_THEME: overrides ui.theme
//   - AGENTDESK_DEBUG: set to "1" or "true" to log every frame
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("AGENTDESK_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("AGENTDESK_API_URL"); v != "" {
		c.Server.APIURL = v
	}
	if v := os.Getenv("AGENTDESK_LOG"); v != "" {
		c.Logging.Path = v
	}
	if v := os.Getenv("AGENTDESK_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("AGENTDESK_DEBUG"); v != "" {
		c.Logging.Debug = v == "1" || strings.ToLower(v) == "true"
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ui.theme").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field := fieldByTag(v, part)
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the struct field whose toml tag matches name.
func fieldByTag(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				lower := strings.ToLower(strVal)
				boolVal = lower == "yes" || lower == "on"
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := strings.Split(f.Tag.Get("toml"), ",")[0]
			if name == "" || name == "-" {
				continue
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, prefix+name+".")
				continue
			}
			keys = append(keys, prefix+name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as indented JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
