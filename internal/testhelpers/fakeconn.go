package testhelpers

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ErrWriteFailed is returned by a FakeConn after FailWrites.
var ErrWriteFailed = errors.New("fakeconn: write failed")

// FakeConn is an in-memory transport.Conn. Frames pushed with Push are
// returned by ReadFrame; frames written by the code under test appear on Written.
type FakeConn struct {
	addr     string
	incoming chan string
	written  chan string
	closed   chan struct{}

	closeOnce  sync.Once
	closeCalls atomic.Int32
	stalled    atomic.Bool
	failWrites atomic.Bool
}

// NewFakeConn returns an open FakeConn reporting addr as its remote address.
func NewFakeConn(addr string) *FakeConn {
	return &FakeConn{
		addr:     addr,
		incoming: make(chan string, 64),
		written:  make(chan string, 1024),
		closed:   make(chan struct{}),
	}
}

// Push queues a frame for ReadFrame.
func (c *FakeConn) Push(frame string) {
	c.incoming <- frame
}

// Written exposes frames written to the connection.
func (c *FakeConn) Written() <-chan string {
	return c.written
}

// Stall makes every later write block until the connection is closed,
// simulating a peer that stopped reading.
func (c *FakeConn) Stall() {
	c.stalled.Store(true)
}

// FailWrites makes every later write return ErrWriteFailed.
func (c *FakeConn) FailWrites() {
	c.failWrites.Store(true)
}

// IsClosed reports whether Close was called.
func (c *FakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// CloseCalls returns how many times Close was called.
func (c *FakeConn) CloseCalls() int {
	return int(c.closeCalls.Load())
}

// ReadFrame returns the next pushed frame, or io.EOF once closed.
func (c *FakeConn) ReadFrame() (string, error) {
	select {
	case frame := <-c.incoming:
		return frame, nil
	case <-c.closed:
		return "", io.EOF
	}
}

func (c *FakeConn) WriteFrame(frame string) error {
	if c.IsClosed() {
		return net.ErrClosed
	}
	if c.stalled.Load() {
		<-c.closed
		return net.ErrClosed
	}
	if c.failWrites.Load() {
		return ErrWriteFailed
	}
	select {
	case c.written <- frame:
		return nil
	case <-c.closed:
		return net.ErrClosed
	}
}

func (c *FakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *FakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *FakeConn) RemoteAddr() string                { return c.addr }

// Close is idempotent.
func (c *FakeConn) Close() error {
	c.closeCalls.Add(1)
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}
