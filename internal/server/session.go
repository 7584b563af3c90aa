// Package server manages individual chat sessions, handling the NICK
// handshake, the receive loop, rate limiting, and the single writer that owns
// each connection's outbound side.
package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/tcpchat/internal/logger"
	"github.com/Tyrowin/tcpchat/internal/protocol"
	"github.com/Tyrowin/tcpchat/internal/transport"
)

type sessionState int

const (
	statePending sessionState = iota
	stateActive
	stateRemoved
)

// Session is the server-side state of one connected participant.
type Session struct {
	id       uuid.UUID
	nickname string
	conn     transport.Conn
	router   *Router
	send     chan string
	limiter  *rate.Limiter
	log      zerolog.Logger

	// guarded by router.mu
	state sessionState
}

// NewSession creates a session bound to conn. The session owns conn from now on.
func NewSession(conn transport.Conn, router *Router) *Session {
	id := uuid.New()
	return &Session{
		id:      id,
		conn:    conn,
		router:  router,
		send:    make(chan string, router.cfg.SendQueueSize),
		limiter: newRateLimiter(router.cfg.RateLimit),
		log: logger.Component("session").With().
			Str("session", id.String()).
			Str("remote", conn.RemoteAddr()).
			Logger(),
	}
}

// ID returns the session's unique handle.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Nickname returns the name the peer sent during the handshake.
func (s *Session) Nickname() string {
	return s.nickname
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

// Serve runs the session to completion: handshake, registration, then the
// receive loop. It returns once the connection has failed or been closed.
func (s *Session) Serve() {
	defer s.router.forget(s)

	nickname, err := s.handshake()
	if err != nil {
		s.router.metrics.handshakeFailures.Inc()
		s.log.Warn().Err(err).Msg("Handshake failed; dropping connection")
		s.closeConn()
		return
	}
	s.nickname = nickname
	s.log = s.log.With().Str("nick", nickname).Logger()

	if err := s.router.Register(s); err != nil {
		s.log.Warn().Err(err).Msg("Registration rejected")
		s.closeConn()
		return
	}

	s.readPump()
}

// handshake sends the sentinel and takes the next frame as the nickname,
// all within the configured handshake timeout.
func (s *Session) handshake() (string, error) {
	deadline := time.Now().Add(s.router.cfg.HandshakeTimeout)

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return "", fmt.Errorf("%w: set write deadline: %w", protocol.ErrHandshake, err)
	}
	if err := s.conn.WriteFrame(protocol.NickSentinel); err != nil {
		return "", fmt.Errorf("%w: send sentinel: %w", protocol.ErrHandshake, err)
	}

	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("%w: set read deadline: %w", protocol.ErrHandshake, err)
	}
	nickname, err := s.conn.ReadFrame()
	if err != nil {
		return "", fmt.Errorf("%w: read nickname: %w", protocol.ErrHandshake, err)
	}
	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return "", fmt.Errorf("%w: clear read deadline: %w", protocol.ErrHandshake, err)
	}

	return nickname, nil
}

// readPump forwards every inbound frame to the router until the connection
// fails. It is the only path that ends a registered session from the peer side.
func (s *Session) readPump() {
	defer func() {
		s.router.Deregister(s)
		s.closeConn()
	}()

	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			s.handleReadError(err)
			return
		}

		if frame == "" {
			continue
		}

		if !s.checkRateLimit() {
			continue
		}

		s.log.Debug().Str("frame", frame).Msg("Received message")
		s.router.Broadcast(s, frame)
	}
}

// handleReadError logs a terminal read error at a level matching its cause.
func (s *Session) handleReadError(err error) {
	switch {
	case errors.Is(err, protocol.ErrFrameTooLarge), errors.Is(err, protocol.ErrInvalidFrame):
		s.log.Warn().Err(err).Msg("Protocol violation; closing session")
	case transport.IsExpectedCloseError(err):
		s.log.Info().Msg("Session disconnected")
	default:
		s.log.Warn().Err(err).Msg("Read error; closing session")
	}
}

// checkRateLimit reports whether the next frame may be broadcast.
func (s *Session) checkRateLimit() bool {
	if s.limiter == nil || s.limiter.Allow() {
		return true
	}
	s.router.metrics.rateLimited.Inc()
	s.log.Warn().
		Int("burst", s.router.cfg.RateLimit.Burst).
		Dur("interval", s.router.cfg.RateLimit.Interval).
		Msg("Rate limit exceeded; discarding message")
	return false
}

// writePump is the connection's only writer once the session is registered.
// It exits when the router closes the send queue or a write fails.
func (s *Session) writePump() {
	defer s.closeConn()

	for frame := range s.send {
		if err := s.write(frame); err != nil {
			if !transport.IsExpectedCloseError(err) {
				s.log.Warn().Err(err).Msg("Write error; closing session")
			}
			s.router.Deregister(s)
			return
		}
	}
}

func (s *Session) write(frame string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.router.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteFrame(frame)
}

// closeConn releases the connection; repeated calls are harmless.
func (s *Session) closeConn() {
	if err := s.conn.Close(); err != nil && !transport.IsExpectedCloseError(err) {
		s.log.Debug().Err(err).Msg("Error closing connection")
	}
}
