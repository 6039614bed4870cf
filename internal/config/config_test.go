package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultOverwrite, cfg.Transfer.Overwrite)
	assert.Equal(t, DefaultRetries, cfg.Transfer.Retries)
	assert.Equal(t, DefaultKeepAlive, cfg.Transfer.KeepAlive)
	assert.Equal(t, DefaultConnectTimeout, cfg.Transfer.ConnectTimeout)
	assert.Empty(t, cfg.Connections)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
transfer:
  overwrite: skip
  retries: 5
  preserve_timestamps: true
  keep_alive: 45s
connections:
  - name: lab
    host: lab.example.com
    user: deploy
    key_file: /home/deploy/.ssh/id_ed25519
    initial_path: /srv/data
session:
  left_path: /tmp
  last_connection: lab
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "skip", cfg.Transfer.Overwrite)
	assert.Equal(t, 5, cfg.Transfer.Retries)
	assert.True(t, cfg.Transfer.PreserveTimestamps)
	assert.Equal(t, 45*time.Second, cfg.Transfer.KeepAlive)
	// Unset fields still get defaults.
	assert.Equal(t, DefaultConnectTimeout, cfg.Transfer.ConnectTimeout)

	require.Len(t, cfg.Connections, 1)
	conn, ok := cfg.Connection("lab")
	require.True(t, ok)
	assert.Equal(t, "lab.example.com", conn.Host)
	assert.Equal(t, DefaultPort, conn.Port)
	assert.Equal(t, "/srv/data", conn.InitialPath)

	assert.Equal(t, "/tmp", cfg.Session.LeftPath)
	assert.Equal(t, "lab", cfg.Session.LastConnection)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "bad overwrite policy",
			yaml: "transfer:\n  overwrite: clobber\n",
		},
		{
			name: "retries out of range",
			yaml: "transfer:\n  retries: 99\n",
		},
		{
			name: "bad log level",
			yaml: "logging:\n  level: loud\n",
		},
		{
			name: "connection without host",
			yaml: "connections:\n  - name: lab\n    user: deploy\n",
		},
		{
			name: "duplicate connection names",
			yaml: "connections:\n  - name: lab\n    host: a.example.com\n    user: u\n  - name: lab\n    host: b.example.com\n    user: u\n",
		},
		{
			name: "last connection not saved",
			yaml: "session:\n  last_connection: ghost\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSaveLoad_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Transfer.Overwrite = "rename-with-suffix"
	cfg.Connections = []ConnectionConfig{
		{Name: "lab", Host: "lab.example.com", Port: 2222, User: "deploy"},
	}
	cfg.Session = SessionConfig{LeftPath: "/home", RightPath: "/srv", LastConnection: "lab"}

	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Transfer.Overwrite, loaded.Transfer.Overwrite)
	assert.Equal(t, cfg.Connections, loaded.Connections)
	assert.Equal(t, cfg.Session, loaded.Session)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{
		Logging:     LoggingConfig{Level: "WARN"},
		Connections: []ConnectionConfig{{Name: "lab", Host: "h", User: "u"}},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, DefaultPort, cfg.Connections[0].Port)
	assert.Equal(t, DefaultRetries, cfg.Transfer.Retries)
}
