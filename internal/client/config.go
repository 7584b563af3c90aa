package client

import (
	"net"
	"strconv"
	"time"

	"github.com/Tyrowin/tcpchat/internal/protocol"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 5000
)

// Config describes one outbound chat session.
type Config struct {
	Host     string
	Port     int
	Nickname string

	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// Retries is the number of extra connect attempts after the first failure.
	// Every failed attempt is logged; zero means fail on the first error.
	Retries      uint
	RetryDelay   time.Duration
	MaxFrameSize int
}

// DefaultConfig returns the historical defaults: 127.0.0.1:5000, no retries.
func DefaultConfig() Config {
	return Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		RetryDelay:   time.Second,
		MaxFrameSize: protocol.MaxFrameSize,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) sanitize() {
	def := DefaultConfig()
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Port <= 0 {
		c.Port = def.Port
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.MaxFrameSize <= 0 || c.MaxFrameSize > protocol.MaxFrameSize {
		c.MaxFrameSize = protocol.MaxFrameSize
	}
}
