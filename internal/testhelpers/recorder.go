package testhelpers

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Recorder is a client presenter that records what it is shown.
type Recorder struct {
	messages chan string

	mu       sync.Mutex
	lost     []error
	lostOnce chan struct{}
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		messages: make(chan string, 256),
		lostOnce: make(chan struct{}),
	}
}

func (r *Recorder) OnMessage(text string) {
	r.messages <- text
}

func (r *Recorder) OnConnectionLost(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost = append(r.lost, err)
	if len(r.lost) == 1 {
		close(r.lostOnce)
	}
}

// LostCount returns how many connection-lost notifications arrived.
func (r *Recorder) LostCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lost)
}

// WaitLost blocks until the first connection-lost notification.
func (r *Recorder) WaitLost(t *testing.T) {
	t.Helper()
	select {
	case <-r.lostOnce:
	case <-time.After(DefaultTimeout):
		t.Fatal("no connection-lost notification")
	}
}

// Expect requires the next displayed message to equal want.
func (r *Recorder) Expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.messages:
		require.Equal(t, want, got)
	case <-time.After(DefaultTimeout):
		t.Fatalf("timed out waiting for %q", want)
	}
}

// ExpectNone requires that nothing is displayed within timeout.
func (r *Recorder) ExpectNone(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case got := <-r.messages:
		t.Fatalf("expected no message, got %q", got)
	case <-time.After(timeout):
	}
}
