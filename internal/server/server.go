// Package server assembles the chat service: the TCP listener, the router,
// the optional HTTP side and the optional cross-instance relay.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/tcpchat/internal/logger"
	"github.com/Tyrowin/tcpchat/internal/relay"
)

// Server runs one chat instance.
type Server struct {
	cfg      Config
	router   *Router
	listener *Listener
	http     *http.Server
	httpLn   net.Listener
	relay    *relay.NATS
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// New creates a Server; nothing is bound until Start.
func New(cfg Config) *Server {
	cfg.Sanitize()
	return &Server{
		cfg:    cfg,
		router: NewRouter(cfg),
		log:    logger.Component("server"),
	}
}

// Router returns the server's broadcast router.
func (s *Server) Router() *Router {
	return s.router
}

// Addr returns the bound chat address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil when HTTP is disabled.
func (s *Server) HTTPAddr() net.Addr {
	if s.httpLn == nil {
		return nil
	}
	return s.httpLn.Addr()
}

// Start binds the configured addresses and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig

	if s.cfg.Relay.NATSURL != "" {
		r, err := relay.Connect(s.cfg.Relay.NATSURL, s.cfg.Relay.Subject, s.router.DeliverRemote)
		if err != nil {
			return err
		}
		s.relay = r
		s.router.SetRelay(r)
	}

	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		s.closeRelay()
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = NewListener(ln, s.router)

	if s.cfg.HTTPAddr != "" {
		httpLn, err := lc.Listen(ctx, "tcp", s.cfg.HTTPAddr)
		if err != nil {
			_ = s.listener.Close()
			s.closeRelay()
			return fmt.Errorf("listen http %s: %w", s.cfg.HTTPAddr, err)
		}
		s.httpLn = httpLn
		s.http = CreateServer(s.cfg.HTTPAddr, SetupRoutes(s.router))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.log.Info().Str("addr", httpLn.Addr().String()).Msg("HTTP server listening")
			if err := s.http.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error().Err(err).Msg("HTTP server error")
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.listener.AcceptLoop(); err != nil {
			s.log.Error().Err(err).Msg("Accept loop terminated")
		}
	}()

	s.log.Info().
		Str("addr", s.Addr().String()).
		Str("backpressure", string(s.cfg.Backpressure)).
		Int("queue", s.cfg.SendQueueSize).
		Msg("Chat server started")
	return nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Shutdown(shutdownTimeout)
}

// Shutdown stops accepting connections, closes every session and waits for
// background goroutines up to timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.log.Info().Msg("Shutting down chat server...")

	var errs []error
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.http != nil {
		if err := ShutdownServer(s.http, timeout); err != nil {
			errs = append(errs, err)
		}
	}
	s.closeRelay()

	if err := s.router.Shutdown(timeout); err != nil {
		errs = append(errs, err)
	}
	s.wg.Wait()

	return errors.Join(errs...)
}

func (s *Server) closeRelay() {
	if s.relay == nil {
		return
	}
	s.router.SetRelay(nil)
	if err := s.relay.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Relay close failed")
	}
	s.relay = nil
}
