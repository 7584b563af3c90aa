package testhelpers

import (
	"bytes"
	"sync"
	"testing"

	"github.com/Tyrowin/tcpchat/internal/logger"
)

// LogBuffer collects log output written from several goroutines.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CaptureLogs redirects the shared logger into a LogBuffer as JSON lines for
// the rest of the test. Loggers derived before the call keep their old output.
func CaptureLogs(t *testing.T) *LogBuffer {
	t.Helper()
	buf := &LogBuffer{}
	logger.SetOutput(buf)
	t.Cleanup(func() { logger.SetOutput(logger.ConsoleWriter()) })
	return buf
}
