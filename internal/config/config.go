// Package config loads and persists paneferry configuration: saved
// connections, transfer behavior defaults, and the session state restored on
// the next start.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete paneferry configuration.
//
// Sources in order of precedence:
//  1. CLI flags
//  2. Environment variables (PANEFERRY_*)
//  3. Configuration file (YAML)
//  4. Default values
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging"`

	// Transfer carries the defaults applied to every operation request
	// unless overridden per invocation.
	Transfer TransferConfig `mapstructure:"transfer"`

	// Connections are the saved remote connection profiles, addressable
	// by name from the CLI.
	Connections []ConnectionConfig `mapstructure:"connections" validate:"dive"`

	// Session is the state saved on exit and restored on the next start.
	Session SessionConfig `mapstructure:"session"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error DEBUG INFO WARN ERROR"`
}

// TransferConfig holds operation defaults.
type TransferConfig struct {
	// Overwrite is the default collision policy.
	// Valid values: skip, overwrite, rename-with-suffix, prompt
	Overwrite string `mapstructure:"overwrite" validate:"required,oneof=skip overwrite rename-with-suffix prompt"`

	// Retries is the number of attempts for transient failures.
	Retries int `mapstructure:"retries" validate:"gte=1,lte=10"`

	// RateLimit caps sustained transfer throughput in bytes per second.
	// 0 means unlimited.
	RateLimit int64 `mapstructure:"rate_limit" validate:"gte=0"`

	// PreserveTimestamps copies source modification times to destinations.
	PreserveTimestamps bool `mapstructure:"preserve_timestamps"`

	// ShowHidden includes dotfiles in listings and recursive transfers.
	ShowHidden bool `mapstructure:"show_hidden"`

	// KeepAlive is the idle heartbeat interval for remote sessions.
	KeepAlive time.Duration `mapstructure:"keep_alive" validate:"gt=0"`

	// ConnectTimeout bounds the remote handshake.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
}

// ConnectionConfig is one saved remote connection profile. Passwords are
// never stored; key-based profiles reference a key file on disk and
// password profiles prompt interactively.
type ConnectionConfig struct {
	// Name addresses the profile from the CLI.
	Name string `mapstructure:"name" validate:"required"`

	// Host is the remote host name or address.
	Host string `mapstructure:"host" validate:"required"`

	// Port is the SSH port.
	Port int `mapstructure:"port" validate:"gte=1,lte=65535"`

	// User is the login name.
	User string `mapstructure:"user" validate:"required"`

	// KeyFile is the path to a PEM private key. Empty means password
	// authentication with an interactive prompt.
	KeyFile string `mapstructure:"key_file"`

	// InitialPath is the remote directory opened after connecting.
	InitialPath string `mapstructure:"initial_path"`
}

// SessionConfig is the restorable per-pane state.
type SessionConfig struct {
	// LeftPath and RightPath are the last browsed directories per pane.
	LeftPath  string `mapstructure:"left_path"`
	RightPath string `mapstructure:"right_path"`

	// LastConnection is the profile name active on exit.
	LastConnection string `mapstructure:"last_connection"`
}

// Load loads configuration from file, environment, and defaults.
// A missing config file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration back to path, creating parent directories.
// Used to persist session state on exit.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("logging", map[string]any{"level": cfg.Logging.Level})
	v.Set("transfer", map[string]any{
		"overwrite":           cfg.Transfer.Overwrite,
		"retries":             cfg.Transfer.Retries,
		"rate_limit":          cfg.Transfer.RateLimit,
		"preserve_timestamps": cfg.Transfer.PreserveTimestamps,
		"show_hidden":         cfg.Transfer.ShowHidden,
		"keep_alive":          cfg.Transfer.KeepAlive.String(),
		"connect_timeout":     cfg.Transfer.ConnectTimeout.String(),
	})
	conns := make([]map[string]any, 0, len(cfg.Connections))
	for _, c := range cfg.Connections {
		conns = append(conns, map[string]any{
			"name":         c.Name,
			"host":         c.Host,
			"port":         c.Port,
			"user":         c.User,
			"key_file":     c.KeyFile,
			"initial_path": c.InitialPath,
		})
	}
	v.Set("connections", conns)
	v.Set("session", map[string]any{
		"left_path":       cfg.Session.LeftPath,
		"right_path":      cfg.Session.RightPath,
		"last_connection": cfg.Session.LastConnection,
	})

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Connection looks up a saved profile by name.
func (c *Config) Connection(name string) (ConnectionConfig, bool) {
	for _, conn := range c.Connections {
		if conn.Name == name {
			return conn, true
		}
	}
	return ConnectionConfig{}, false
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("PANEFERRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(configDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// configDir returns $XDG_CONFIG_HOME/paneferry, falling back to
// ~/.config/paneferry.
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "paneferry")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "paneferry")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}
