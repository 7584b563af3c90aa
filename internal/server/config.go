// Package server provides configuration helpers that define runtime defaults,
// validation, and backpressure parameters for the chat service.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Tyrowin/tcpchat/internal/protocol"
)

// EnvPrefix namespaces environment overrides, e.g. TCPCHAT_LISTEN_ADDR.
const EnvPrefix = "TCPCHAT"

const (
	defaultListenAddr       = "127.0.0.1:5000"
	defaultSendQueueSize    = 256
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultRateBurst        = 0
	defaultRateInterval     = time.Second
	defaultRelaySubject     = "tcpchat.broadcast"
)

// RateLimitConfig defines opt-in per-session message rate limiting. A Burst of
// zero, the default, disables the limiter so every frame is relayed.
type RateLimitConfig struct {
	Burst    int           `mapstructure:"burst"`
	Interval time.Duration `mapstructure:"interval"`
}

// RelayConfig enables cross-instance broadcast over NATS when NATSURL is set.
type RelayConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

// LogConfig selects the log level and console formatting.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Config holds the server configuration.
type Config struct {
	ListenAddr       string             `mapstructure:"listen_addr"`
	HTTPAddr         string             `mapstructure:"http_addr"`
	AllowedOrigins   []string           `mapstructure:"allowed_origins"`
	MaxMessageSize   int                `mapstructure:"max_message_size"`
	SendQueueSize    int                `mapstructure:"send_queue_size"`
	Backpressure     BackpressurePolicy `mapstructure:"backpressure"`
	HandshakeTimeout time.Duration      `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration      `mapstructure:"write_timeout"`
	MaxSessions      int                `mapstructure:"max_sessions"`
	RateLimit        RateLimitConfig    `mapstructure:"rate_limit"`
	Relay            RelayConfig        `mapstructure:"relay"`
	Log              LogConfig          `mapstructure:"log"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr: defaultListenAddr,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:   protocol.MaxFrameSize,
		SendQueueSize:    defaultSendQueueSize,
		Backpressure:     PolicyDisconnect,
		HandshakeTimeout: defaultHandshakeTimeout,
		WriteTimeout:     defaultWriteTimeout,
		RateLimit: RateLimitConfig{
			Burst:    defaultRateBurst,
			Interval: defaultRateInterval,
		},
		Relay: RelayConfig{
			Subject: defaultRelaySubject,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// Sanitize replaces out-of-range values with their defaults.
func (c *Config) Sanitize() {
	def := defaultConfig()

	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}

	if c.MaxMessageSize <= 0 || c.MaxMessageSize > protocol.MaxFrameSize {
		c.MaxMessageSize = protocol.MaxFrameSize
	}

	if c.SendQueueSize <= 0 {
		c.SendQueueSize = def.SendQueueSize
	}

	c.Backpressure = BackpressurePolicy(strings.ToLower(strings.TrimSpace(string(c.Backpressure))))
	if !c.Backpressure.Valid() {
		c.Backpressure = def.Backpressure
	}

	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}

	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}

	if c.MaxSessions < 0 {
		c.MaxSessions = 0
	}

	if c.RateLimit.Burst < 0 {
		c.RateLimit.Burst = 0
	}

	if c.RateLimit.Interval <= 0 {
		c.RateLimit.Interval = def.RateLimit.Interval
	}

	if c.Relay.Subject == "" {
		c.Relay.Subject = def.Relay.Subject
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

func setDefaults(v *viper.Viper) {
	def := defaultConfig()
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("allowed_origins", def.AllowedOrigins)
	v.SetDefault("max_message_size", def.MaxMessageSize)
	v.SetDefault("send_queue_size", def.SendQueueSize)
	v.SetDefault("backpressure", string(def.Backpressure))
	v.SetDefault("handshake_timeout", def.HandshakeTimeout)
	v.SetDefault("write_timeout", def.WriteTimeout)
	v.SetDefault("max_sessions", def.MaxSessions)
	v.SetDefault("rate_limit.burst", def.RateLimit.Burst)
	v.SetDefault("rate_limit.interval", def.RateLimit.Interval)
	v.SetDefault("relay.nats_url", def.Relay.NATSURL)
	v.SetDefault("relay.subject", def.Relay.Subject)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.pretty", def.Log.Pretty)
}

// NewViper returns a viper instance with defaults and TCPCHAT_* environment
// overrides registered. Callers may bind command line flags onto it before
// calling LoadConfig.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads an optional config file into v and decodes the result.
// Precedence is the viper default: flags, environment, file, defaults.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Sanitize()
	return &cfg, nil
}
