package config

import (
	"strings"
	"time"
)

// Default values applied where the file and environment are silent.
const (
	DefaultLogLevel       = "info"
	DefaultOverwrite      = "prompt"
	DefaultRetries        = 3
	DefaultKeepAlive      = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultPort           = 22
)

// ApplyDefaults fills zero values with defaults and normalizes the log
// level to lowercase.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	if cfg.Transfer.Overwrite == "" {
		cfg.Transfer.Overwrite = DefaultOverwrite
	}
	if cfg.Transfer.Retries == 0 {
		cfg.Transfer.Retries = DefaultRetries
	}
	if cfg.Transfer.KeepAlive == 0 {
		cfg.Transfer.KeepAlive = DefaultKeepAlive
	}
	if cfg.Transfer.ConnectTimeout == 0 {
		cfg.Transfer.ConnectTimeout = DefaultConnectTimeout
	}

	for i := range cfg.Connections {
		if cfg.Connections[i].Port == 0 {
			cfg.Connections[i].Port = DefaultPort
		}
	}
}
