package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "{}\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.TCP.Host)
	assert.Equal(t, 5555, cfg.TCP.Port)
	assert.Equal(t, time.Duration(0), cfg.TCP.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.TCP.WriteTimeout)
	assert.Equal(t, 65536, cfg.TCP.MaxFrameBytes)

	assert.False(t, cfg.WebSocket.Enabled)
	assert.Equal(t, 8080, cfg.WebSocket.Port)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, 64, cfg.Session.OutboxBuffer)
	assert.Equal(t, "Player", cfg.Session.DefaultPlayerName)
	assert.Equal(t, 30*time.Second, cfg.Session.StatusInterval)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfigFile(t, `
tcp:
  host: 127.0.0.1
  port: 6000
  read_timeout: 2m
websocket:
  enabled: true
  port: 9090
  path: /poker
logging:
  level: debug
  format: console
session:
  outbox_buffer: 8
  default_player_name: Guest
  status_interval: 10s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6000", cfg.TCP.Addr())
	assert.Equal(t, 2*time.Minute, cfg.TCP.ReadTimeout)
	assert.True(t, cfg.WebSocket.Enabled)
	assert.Equal(t, "0.0.0.0:9090", cfg.WebSocket.Addr())
	assert.Equal(t, "/poker", cfg.WebSocket.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Session.OutboxBuffer)
	assert.Equal(t, "Guest", cfg.Session.DefaultPlayerName)
	assert.Equal(t, 10*time.Second, cfg.Session.StatusInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate(t *testing.T) {
	valid := Config{
		TCP: TCPConfig{
			Host:          "0.0.0.0",
			Port:          5555,
			WriteTimeout:  30 * time.Second,
			MaxFrameBytes: 65536,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Session: SessionConfig{OutboxBuffer: 64},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "tcp port out of range",
			mutate:  func(c *Config) { c.TCP.Port = 70000 },
			wantErr: "tcp.port",
		},
		{
			name:    "negative read timeout",
			mutate:  func(c *Config) { c.TCP.ReadTimeout = -time.Second },
			wantErr: "tcp.read_timeout",
		},
		{
			name:    "zero max frame",
			mutate:  func(c *Config) { c.TCP.MaxFrameBytes = 0 },
			wantErr: "tcp.max_frame_bytes",
		},
		{
			name: "enabled websocket needs valid port",
			mutate: func(c *Config) {
				c.WebSocket.Enabled = true
				c.WebSocket.Port = 0
			},
			wantErr: "websocket.port",
		},
		{
			name: "websocket path must be rooted",
			mutate: func(c *Config) {
				c.WebSocket.Enabled = true
				c.WebSocket.Port = 8080
				c.WebSocket.Path = "ws"
			},
			wantErr: "websocket.path",
		},
		{
			name:   "disabled websocket skips validation",
			mutate: func(c *Config) { c.WebSocket.Port = 0 },
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "zero outbox buffer",
			mutate:  func(c *Config) { c.Session.OutboxBuffer = 0 },
			wantErr: "session.outbox_buffer",
		},
		{
			name:    "negative status interval",
			mutate:  func(c *Config) { c.Session.StatusInterval = -time.Second },
			wantErr: "session.status_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tcp.port")
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "session.outbox_buffer")
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfigFile(t, "tcp:\n  port: -1\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tcp.port")
}
