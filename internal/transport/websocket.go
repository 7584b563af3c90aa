package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/tcpchat/internal/protocol"
)

const closeGracePeriod = time.Second

// WSConn carries chat frames as WebSocket text messages, one frame per message.
type WSConn struct {
	conn         *websocket.Conn
	maxFrameSize int
	closeOnce    sync.Once
	closeErr     error
}

// NewWSConn takes ownership of an upgraded WebSocket connection.
func NewWSConn(conn *websocket.Conn, maxFrameSize int) *WSConn {
	if maxFrameSize <= 0 || maxFrameSize > protocol.MaxFrameSize {
		maxFrameSize = protocol.MaxFrameSize
	}
	conn.SetReadLimit(int64(maxFrameSize))
	return &WSConn{conn: conn, maxFrameSize: maxFrameSize}
}

// ReadFrame returns the next text message. Binary messages and messages that
// break the frame rules are protocol violations.
func (c *WSConn) ReadFrame() (string, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			return "", fmt.Errorf("%w: websocket message over %d bytes", protocol.ErrFrameTooLarge, c.maxFrameSize)
		}
		return "", err
	}
	if messageType != websocket.TextMessage {
		return "", fmt.Errorf("%w: websocket message type %d", protocol.ErrInvalidFrame, messageType)
	}
	frame := string(data)
	if err := protocol.ValidateFrame(frame, c.maxFrameSize); err != nil {
		return "", err
	}
	return frame, nil
}

func (c *WSConn) WriteFrame(frame string) error {
	if err := protocol.ValidateFrame(frame, c.maxFrameSize); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *WSConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *WSConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *WSConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close sends a best-effort close control message and closes the socket once.
func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
