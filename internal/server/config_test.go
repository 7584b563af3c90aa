package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/tcpchat/internal/protocol"
)

// TestNewConfigDefaults verifies the documented default values.
func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "127.0.0.1:5000", cfg.ListenAddr)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, protocol.MaxFrameSize, cfg.MaxMessageSize)
	assert.Equal(t, 256, cfg.SendQueueSize)
	assert.Equal(t, PolicyDisconnect, cfg.Backpressure)
	assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Zero(t, cfg.MaxSessions)
	assert.Equal(t, RateLimitConfig{Burst: 0, Interval: time.Second}, cfg.RateLimit)
	assert.Equal(t, "tcpchat.broadcast", cfg.Relay.Subject)
	assert.Empty(t, cfg.Relay.NATSURL)
}

// TestConfigSanitize verifies that out-of-range values fall back to defaults.
func TestConfigSanitize(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, *Config)
	}{
		{
			name:   "blank listen address",
			mutate: func(c *Config) { c.ListenAddr = "  " },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, defaultListenAddr, c.ListenAddr) },
		},
		{
			name:   "message size above protocol limit",
			mutate: func(c *Config) { c.MaxMessageSize = 4096 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, protocol.MaxFrameSize, c.MaxMessageSize) },
		},
		{
			name:   "smaller message size is kept",
			mutate: func(c *Config) { c.MaxMessageSize = 128 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, 128, c.MaxMessageSize) },
		},
		{
			name:   "zero queue size",
			mutate: func(c *Config) { c.SendQueueSize = 0 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, defaultSendQueueSize, c.SendQueueSize) },
		},
		{
			name:   "policy is case insensitive",
			mutate: func(c *Config) { c.Backpressure = " Drop_Oldest " },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, PolicyDropOldest, c.Backpressure) },
		},
		{
			name:   "unknown policy",
			mutate: func(c *Config) { c.Backpressure = "block" },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, PolicyDisconnect, c.Backpressure) },
		},
		{
			name:   "negative timeouts",
			mutate: func(c *Config) { c.HandshakeTimeout, c.WriteTimeout = -1, 0 },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, defaultHandshakeTimeout, c.HandshakeTimeout)
				assert.Equal(t, defaultWriteTimeout, c.WriteTimeout)
			},
		},
		{
			name:   "negative session limit",
			mutate: func(c *Config) { c.MaxSessions = -3 },
			check:  func(t *testing.T, c *Config) { assert.Zero(t, c.MaxSessions) },
		},
		{
			name:   "zero burst disables rate limiting",
			mutate: func(c *Config) { c.RateLimit = RateLimitConfig{Burst: 0, Interval: 0} },
			check: func(t *testing.T, c *Config) {
				assert.Zero(t, c.RateLimit.Burst)
				assert.Equal(t, defaultRateInterval, c.RateLimit.Interval)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			cfg.Sanitize()
			tt.check(t, cfg)
		})
	}
}

// TestLoadConfigFromFile verifies that a YAML file overrides defaults.
func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcpchat.yaml")
	content := `
listen_addr: "0.0.0.0:6000"
http_addr: "127.0.0.1:8081"
allowed_origins:
  - "http://chat.example.com"
backpressure: drop_newest
handshake_timeout: 3s
max_sessions: 50
rate_limit:
  burst: 4
  interval: 2s
relay:
  nats_url: "nats://127.0.0.1:4222"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(NewViper(), path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:6000", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"http://chat.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, PolicyDropNewest, cfg.Backpressure)
	assert.Equal(t, 3*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 50, cfg.MaxSessions)
	assert.Equal(t, RateLimitConfig{Burst: 4, Interval: 2 * time.Second}, cfg.RateLimit)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Relay.NATSURL)
	assert.Equal(t, defaultRelaySubject, cfg.Relay.Subject)
	assert.Equal(t, 256, cfg.SendQueueSize)
}

// TestLoadConfigEnvironmentOverrides verifies TCPCHAT_* variables win over defaults.
func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("TCPCHAT_LISTEN_ADDR", "127.0.0.1:7000")
	t.Setenv("TCPCHAT_SEND_QUEUE_SIZE", "32")
	t.Setenv("TCPCHAT_RATE_LIMIT_BURST", "5")
	t.Setenv("TCPCHAT_WRITE_TIMEOUT", "250ms")

	cfg, err := LoadConfig(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr)
	assert.Equal(t, 32, cfg.SendQueueSize)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 250*time.Millisecond, cfg.WriteTimeout)
}

// TestLoadConfigMissingFile verifies that an explicit but absent file is an error.
func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBackpressurePolicyValid(t *testing.T) {
	for _, p := range []BackpressurePolicy{PolicyDisconnect, PolicyDropOldest, PolicyDropNewest} {
		assert.True(t, p.Valid(), string(p))
	}
	assert.False(t, BackpressurePolicy("block").Valid())
}
