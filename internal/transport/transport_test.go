package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/tcpchat/internal/protocol"
)

func TestTCPConnOverPipe(t *testing.T) {
	left, right := net.Pipe()
	a := NewTCPConn(left, protocol.MaxFrameSize)
	b := NewTCPConn(right, protocol.MaxFrameSize)
	defer a.Close()
	defer b.Close()

	go func() {
		_ = a.WriteFrame("NICK")
	}()

	got, err := b.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "NICK", got)
}

func TestTCPConnCloseIsIdempotent(t *testing.T) {
	left, right := net.Pipe()
	defer right.Close()
	c := NewTCPConn(left, 0)

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	_, err := c.ReadFrame()
	assert.Error(t, err)
}

func TestTCPConnReadDeadline(t *testing.T) {
	left, right := net.Pipe()
	defer right.Close()
	c := NewTCPConn(left, 0)
	defer c.Close()

	require.NoError(t, c.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	_, err := c.ReadFrame()
	assert.True(t, IsTimeout(err), "expected timeout, got %v", err)
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = io.WriteString(conn, "NICK\n")
		_ = conn.Close()
	}()

	c, err := DialTCP(context.Background(), ln.Addr().String(), time.Second, 0)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "NICK", got)

	_, err = c.ReadFrame()
	assert.True(t, IsExpectedCloseError(err))
}

func TestDialTCPRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = DialTCP(context.Background(), addr, time.Second, 0)
	assert.Error(t, err)
}

func newWSPair(t *testing.T, maxFrameSize int) (*WSConn, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	accepted := make(chan *WSConn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- NewWSConn(conn, maxFrameSize)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case c := <-accepted:
		t.Cleanup(func() { _ = c.Close() })
		return c, client
	case <-time.After(2 * time.Second):
		t.Fatal("websocket upgrade timed out")
		return nil, nil
	}
}

func TestWSConnFrames(t *testing.T) {
	server, client := newWSPair(t, 0)

	require.NoError(t, server.WriteFrame("NICK"))
	mt, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, "NICK", string(data))

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("alice")))
	got, err := server.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
}

func TestWSConnRejectsBinary(t *testing.T) {
	server, client := newWSPair(t, 0)

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	_, err := server.ReadFrame()
	assert.ErrorIs(t, err, protocol.ErrInvalidFrame)
}

func TestWSConnRejectsOversize(t *testing.T) {
	server, client := newWSPair(t, 16)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64))))
	_, err := server.ReadFrame()
	assert.ErrorIs(t, err, protocol.ErrFrameTooLarge)
}

func TestWSConnRejectsEmbeddedNewline(t *testing.T) {
	server, client := newWSPair(t, 0)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("a\nb")))
	_, err := server.ReadFrame()
	assert.ErrorIs(t, err, protocol.ErrInvalidFrame)
}

func TestWSConnCloseIsIdempotent(t *testing.T) {
	server, client := newWSPair(t, 0)

	require.NoError(t, server.Close())
	assert.NoError(t, server.Close())

	_, _, err := client.ReadMessage()
	assert.True(t, IsExpectedCloseError(err), "got %v", err)
}

func TestIsExpectedCloseError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("read: %w", io.EOF), true},
		{"net closed", net.ErrClosed, true},
		{"ws normal close", &websocket.CloseError{Code: websocket.CloseNormalClosure}, true},
		{"ws going away", &websocket.CloseError{Code: websocket.CloseGoingAway}, true},
		{"broken pipe text", errors.New("write: broken pipe"), true},
		{"frame too large", protocol.ErrFrameTooLarge, false},
		{"other", errors.New("boom"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsExpectedCloseError(tc.err))
		})
	}
}
