// Package client implements the client side of the chat protocol: connect,
// answer the NICK handshake, send chat lines and deliver every received line
// to a Presenter from a background receive loop.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/tcpchat/internal/logger"
	"github.com/Tyrowin/tcpchat/internal/protocol"
	"github.com/Tyrowin/tcpchat/internal/transport"
)

var (
	// ErrClosed is returned by Send once the session has ended.
	ErrClosed = errors.New("client: session closed")
	// ErrNoNickname is returned by Dial when no nickname is configured.
	ErrNoNickname = errors.New("client: nickname required")
	// ErrReservedNickname is returned by Dial for a nickname equal to the
	// handshake sentinel; two such clients would answer each other forever.
	ErrReservedNickname = errors.New("client: nickname is reserved")
)

// Session is one connection to a chat server.
type Session struct {
	cfg       Config
	conn      transport.Conn
	presenter Presenter
	log       zerolog.Logger

	state   atomic.Int32
	closing atomic.Bool
	writeMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

// Dial connects to the server and starts the receive loop. Connection
// failures are returned, after cfg.Retries logged retries.
func Dial(ctx context.Context, cfg Config, presenter Presenter) (*Session, error) {
	cfg.sanitize()
	if cfg.Nickname == "" {
		return nil, ErrNoNickname
	}
	if protocol.IsSentinel(cfg.Nickname) {
		return nil, ErrReservedNickname
	}
	if err := protocol.ValidateFrame(cfg.Nickname, cfg.MaxFrameSize); err != nil {
		return nil, fmt.Errorf("nickname: %w", err)
	}

	log := logger.Component("client").With().
		Str("nick", cfg.Nickname).
		Str("addr", cfg.Addr()).
		Logger()

	var conn transport.Conn
	err := retry.Do(
		func() error {
			c, err := transport.DialTCP(ctx, cfg.Addr(), cfg.DialTimeout, cfg.MaxFrameSize)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(cfg.Retries+1),
		retry.Delay(cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Uint("attempts", cfg.Retries+1).Msg("Connect attempt failed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Addr(), err)
	}

	s := newSession(conn, cfg, presenter, log)
	log.Info().Msg("Connected; waiting for handshake")
	go s.receiveLoop()
	return s, nil
}

func newSession(conn transport.Conn, cfg Config, presenter Presenter, log zerolog.Logger) *Session {
	if presenter == nil {
		presenter = PresenterFuncs{}
	}
	s := &Session{
		cfg:       cfg,
		conn:      conn,
		presenter: presenter,
		log:       log,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.state.Store(int32(StateHandshaking))
	return s
}

// Nickname returns the configured nickname.
func (s *Session) Nickname() string {
	return s.cfg.Nickname
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed when the receive loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// WaitReady blocks until the handshake completed, the session ended or ctx expired.
func (s *Session) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		if s.State() == StateClosed {
			return ErrClosed
		}
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send writes "<nickname>: <text>" as one frame. Empty text is a no-op.
// Before the handshake completes Send waits for it.
func (s *Session) Send(text string) error {
	if text == "" {
		return nil
	}

	frame := protocol.FormatChat(s.cfg.Nickname, text)
	if err := protocol.ValidateFrame(frame, s.cfg.MaxFrameSize); err != nil {
		return err
	}

	select {
	case <-s.ready:
	case <-s.done:
		return ErrClosed
	}
	if s.State() == StateClosed {
		return ErrClosed
	}

	if err := s.writeFrame(frame); err != nil {
		// the receive loop sees the closed socket and reports the loss
		s.closeConn()
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close ends the session without a connection-lost notification.
func (s *Session) Close() error {
	s.closing.Store(true)
	s.state.Store(int32(StateClosed))
	return s.closeConn()
}

func (s *Session) receiveLoop() {
	defer close(s.done)

	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			s.teardown(err)
			return
		}

		if protocol.IsSentinel(frame) {
			if err := s.writeFrame(s.cfg.Nickname); err != nil {
				s.teardown(err)
				return
			}
			s.log.Debug().Msg("Answered nickname request")
			s.markActive()
			continue
		}

		s.markActive()
		s.presenter.OnMessage(frame)
	}
}

func (s *Session) markActive() {
	s.readyOnce.Do(func() {
		s.state.CompareAndSwap(int32(StateHandshaking), int32(StateActive))
		close(s.ready)
	})
}

// teardown runs once, on the receive goroutine.
func (s *Session) teardown(err error) {
	s.state.Store(int32(StateClosed))
	_ = s.closeConn()

	if s.closing.Load() {
		s.log.Info().Msg("Session closed")
		return
	}

	s.log.Warn().Err(err).Msg("Connection lost")
	s.presenter.OnConnectionLost(err)
}

func (s *Session) writeFrame(frame string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteFrame(frame)
}

func (s *Session) closeConn() error {
	if err := s.conn.Close(); err != nil && !transport.IsExpectedCloseError(err) {
		return err
	}
	return nil
}
