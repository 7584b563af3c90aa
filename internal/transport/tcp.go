package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/tcpchat/internal/protocol"
)

// TCPConn frames a stream socket with the newline protocol.
type TCPConn struct {
	conn      net.Conn
	reader    *protocol.Reader
	writer    *protocol.Writer
	closeOnce sync.Once
	closeErr  error
}

// NewTCPConn takes ownership of conn.
func NewTCPConn(conn net.Conn, maxFrameSize int) *TCPConn {
	return &TCPConn{
		conn:   conn,
		reader: protocol.NewReader(conn, maxFrameSize),
		writer: protocol.NewWriter(conn, maxFrameSize),
	}
}

// DialTCP connects to addr and returns a framed connection.
func DialTCP(ctx context.Context, addr string, timeout time.Duration, maxFrameSize int) (*TCPConn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTCPConn(conn, maxFrameSize), nil
}

func (c *TCPConn) ReadFrame() (string, error) {
	return c.reader.ReadFrame()
}

func (c *TCPConn) WriteFrame(frame string) error {
	return c.writer.WriteFrame(frame)
}

func (c *TCPConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *TCPConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func (c *TCPConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the socket once; later calls return the first result.
func (c *TCPConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
