// Package testhelpers provides common utilities and helper functions for testing the chat server.
//
// This package contains reusable test utilities that are shared across package tests.
// It provides raw protocol clients, an in-memory connection, a recording presenter
// and WebSocket helpers to reduce code duplication in test files.
package testhelpers

import (
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/tcpchat/internal/protocol"
	"github.com/Tyrowin/tcpchat/internal/transport"
)

// DefaultTimeout bounds every blocking helper.
const DefaultTimeout = 2 * time.Second

// RawClient speaks the wire protocol directly, without the client package.
type RawClient struct {
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
}

// DialRaw connects a RawClient to addr and closes it when the test ends.
func DialRaw(t *testing.T, addr string) *RawClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	require.NoError(t, err, "dial %s", addr)
	t.Cleanup(func() { _ = conn.Close() })

	return &RawClient{
		conn:   conn,
		reader: protocol.NewReader(conn, protocol.MaxFrameSize),
		writer: protocol.NewWriter(conn, protocol.MaxFrameSize),
	}
}

// Handshake expects the NICK sentinel and answers with nickname.
func (c *RawClient) Handshake(t *testing.T, nickname string) {
	t.Helper()
	c.Expect(t, protocol.NickSentinel)
	c.Send(t, nickname)
}

// Send writes one frame.
func (c *RawClient) Send(t *testing.T, frame string) {
	t.Helper()
	require.NoError(t, c.conn.SetWriteDeadline(time.Now().Add(DefaultTimeout)))
	require.NoError(t, c.writer.WriteFrame(frame))
}

// SendRaw writes bytes without framing, for protocol-violation tests.
func (c *RawClient) SendRaw(t *testing.T, data []byte) {
	t.Helper()
	require.NoError(t, c.conn.SetWriteDeadline(time.Now().Add(DefaultTimeout)))
	_, err := c.conn.Write(data)
	require.NoError(t, err)
}

// Read returns the next frame or the read error after DefaultTimeout.
func (c *RawClient) Read(timeout time.Duration) (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	return c.reader.ReadFrame()
}

// Expect reads one frame and requires it to equal want.
func (c *RawClient) Expect(t *testing.T, want string) {
	t.Helper()
	got, err := c.Read(DefaultTimeout)
	require.NoError(t, err, "waiting for %q", want)
	require.Equal(t, want, got)
}

// ExpectNone requires that no frame arrives within timeout.
func (c *RawClient) ExpectNone(t *testing.T, timeout time.Duration) {
	t.Helper()
	got, err := c.Read(timeout)
	if err == nil {
		t.Fatalf("expected no frame, got %q", got)
	}
	require.True(t, transport.IsTimeout(err), "expected timeout, got %v", err)
}

// ExpectClosed requires the server to close the connection within timeout.
func (c *RawClient) ExpectClosed(t *testing.T, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		_, err := c.Read(time.Until(deadline))
		if err == nil {
			continue
		}
		require.False(t, transport.IsTimeout(err), "connection still open after %s", timeout)
		return
	}
	t.Fatalf("connection still open after %s", timeout)
}

// Close closes the socket abruptly.
func (c *RawClient) Close() error {
	return c.conn.Close()
}

// ConnectWebSocket creates a WebSocket connection to the specified URL with the given Origin.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// ReadWebSocketFrame reads one text message with a deadline.
func ReadWebSocketFrame(conn *websocket.Conn, timeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	_, data, err := conn.ReadMessage()
	return string(data), err
}
