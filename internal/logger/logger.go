// Package logger configures the process-wide zerolog logger shared by the
// server, the client library and the command line tools.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base = zerolog.New(ConsoleWriter()).With().Timestamp().Logger()
)

// ConsoleWriter returns a human-readable zerolog writer on stderr.
func ConsoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
}

// Init sets the global level and output format. Unknown levels fall back to info.
func Init(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stderr
	if pretty {
		out = ConsoleWriter()
	}

	mu.Lock()
	base = zerolog.New(out).With().Timestamp().Logger()
	mu.Unlock()
}

// SetOutput redirects the base logger, mainly for tests that assert on log lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	base = base.Output(w)
	mu.Unlock()
}

// Get returns the base logger.
func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	l := Get()
	return l.With().Str("component", name).Logger()
}
