// Package transport adapts raw sockets into frame-oriented chat connections.
// A TCP stream and a WebSocket both satisfy Conn, so sessions and the router
// never see which one they are talking to.
package transport

import (
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a single bidirectional frame stream owned by one session.
// ReadFrame is called from one goroutine; WriteFrame from one writer.
// Close is safe to call more than once.
type Conn interface {
	ReadFrame() (string, error)
	WriteFrame(frame string) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// IsExpectedCloseError reports whether err is the ordinary result of either
// side closing the connection.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "connection reset by peer") ||
		strings.Contains(errStr, "broken pipe")
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
