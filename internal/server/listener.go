package server

import (
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/tcpchat/internal/logger"
	"github.com/Tyrowin/tcpchat/internal/transport"
)

const maxAcceptBackoff = time.Second

// Listener accepts TCP connections and hands each one to a new Session.
type Listener struct {
	ln     net.Listener
	router *Router
	log    zerolog.Logger
}

// Listen binds addr and returns a Listener feeding router.
func Listen(addr string, router *Router) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewListener(ln, router), nil
}

// NewListener wraps an existing net.Listener.
func NewListener(ln net.Listener, router *Router) *Listener {
	return &Listener{
		ln:     ln,
		router: router,
		log:    logger.Component("listener"),
	}
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops the accept loop.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// AcceptLoop accepts connections until the listener is closed. Transient
// accept errors are logged and retried with backoff; it returns nil after
// Close and the error for any other failure.
func (l *Listener) AcceptLoop() error {
	l.log.Info().Str("addr", l.Addr().String()).Msg("Accepting chat connections")

	var delay time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				l.log.Info().Msg("Listener closed; accept loop stopped")
				return nil
			}
			if isTransientAcceptError(err) {
				delay = nextAcceptBackoff(delay)
				l.log.Warn().Err(err).Dur("retry_in", delay).Msg("Accept failed; retrying")
				time.Sleep(delay)
				continue
			}
			l.log.Error().Err(err).Msg("Accept failed; stopping listener")
			return err
		}
		delay = 0
		l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	tc := transport.NewTCPConn(conn, l.router.cfg.MaxMessageSize)
	s := NewSession(tc, l.router)
	if err := l.router.spawn(s); err != nil {
		l.log.Warn().Err(err).Str("remote", tc.RemoteAddr()).Msg("Connection rejected")
		_ = tc.Close()
		return
	}
	l.log.Debug().Str("remote", tc.RemoteAddr()).Str("session", s.ID().String()).Msg("Connection accepted")
}

func isTransientAcceptError(err error) bool {
	var ne net.Error
	if !errors.As(err, &ne) {
		return false
	}
	if ne.Timeout() {
		return true
	}
	// EMFILE and ECONNABORTED still report Temporary.
	tmp, ok := err.(interface{ Temporary() bool })
	return ok && tmp.Temporary()
}

func nextAcceptBackoff(delay time.Duration) time.Duration {
	if delay == 0 {
		return 5 * time.Millisecond
	}
	delay *= 2
	if delay > maxAcceptBackoff {
		delay = maxAcceptBackoff
	}
	return delay
}
