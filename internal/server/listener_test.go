package server

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTransientAcceptError(t *testing.T) {
	assert.True(t, isTransientAcceptError(timeoutError{}))
	assert.True(t, isTransientAcceptError(&net.OpError{Op: "accept", Err: timeoutError{}}))
	assert.False(t, isTransientAcceptError(errors.New("boom")))
	assert.False(t, isTransientAcceptError(net.ErrClosed))
}

func TestNextAcceptBackoff(t *testing.T) {
	delay := nextAcceptBackoff(0)
	assert.Equal(t, 5*time.Millisecond, delay)

	delay = nextAcceptBackoff(delay)
	assert.Equal(t, 10*time.Millisecond, delay)

	assert.Equal(t, maxAcceptBackoff, nextAcceptBackoff(800*time.Millisecond))
	assert.Equal(t, maxAcceptBackoff, nextAcceptBackoff(maxAcceptBackoff))
}

// TestAcceptLoopStopsOnClose verifies a closed listener ends the loop cleanly.
func TestAcceptLoopStopsOnClose(t *testing.T) {
	r := newTestRouter(t, nil)
	l, err := Listen("127.0.0.1:0", r)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- l.AcceptLoop() }()

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, l.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(eventually):
		t.Fatal("accept loop did not stop")
	}
}

// TestListenerRejectsOverLimit verifies connections beyond MaxSessions are closed.
func TestListenerRejectsOverLimit(t *testing.T) {
	r := newTestRouter(t, func(cfg *Config) { cfg.MaxSessions = 1 })
	l, err := Listen("127.0.0.1:0", r)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	go func() { _ = l.AcceptLoop() }()

	first, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	buf := make([]byte, 16)
	require.NoError(t, first.SetReadDeadline(time.Now().Add(eventually)))
	n, err := first.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "NICK\n", string(buf[:n]))

	second, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	require.NoError(t, second.SetReadDeadline(time.Now().Add(eventually)))
	_, err = second.Read(buf)
	assert.Error(t, err)
	var ne net.Error
	if errors.As(err, &ne) {
		assert.False(t, ne.Timeout(), "second connection should be closed, not left waiting")
	}
}
