// Package server coordinates session registration, message broadcast, and
// connection cleanup for the chat system via the Router type.
package server

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Tyrowin/tcpchat/internal/logger"
	"github.com/Tyrowin/tcpchat/internal/protocol"
)

var (
	// ErrRouterClosed is returned for sessions offered after Shutdown started.
	ErrRouterClosed = errors.New("router: shutting down")
	// ErrTooManySessions is returned when MaxSessions connections are already tracked.
	ErrTooManySessions = errors.New("router: session limit reached")
	// ErrSessionRemoved is returned when registering a session that was already torn down.
	ErrSessionRemoved = errors.New("router: session already removed")
)

// Publisher forwards locally originated broadcasts to other server instances.
type Publisher interface {
	Publish(frame string) error
}

// Router holds the registry of active sessions and fans out every message to
// all of them except its sender. Registration, deregistration and fan-out are
// serialized by one mutex; fan-out only enqueues, so a stalled peer never
// holds the lock.
type Router struct {
	cfg     Config
	log     zerolog.Logger
	metrics *metrics

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	pending  map[uuid.UUID]*Session
	relay    Publisher
	closed   bool

	wg sync.WaitGroup
}

// NewRouter creates a Router for the given configuration.
func NewRouter(cfg Config) *Router {
	cfg.Sanitize()
	return &Router{
		cfg:      cfg,
		log:      logger.Component("router"),
		metrics:  newMetrics(),
		sessions: make(map[uuid.UUID]*Session),
		pending:  make(map[uuid.UUID]*Session),
	}
}

// SetRelay installs the publisher that receives every locally sent message.
func (r *Router) SetRelay(p Publisher) {
	r.mu.Lock()
	r.relay = p
	r.mu.Unlock()
}

// spawn tracks s until its handshake finishes and runs it on its own goroutine.
func (r *Router) spawn(s *Session) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRouterClosed
	}
	if r.cfg.MaxSessions > 0 && len(r.sessions)+len(r.pending) >= r.cfg.MaxSessions {
		r.mu.Unlock()
		return ErrTooManySessions
	}
	r.pending[s.id] = s
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		s.Serve()
	}()
	return nil
}

// forget drops a session that never made it into the registry.
func (r *Router) forget(s *Session) {
	r.mu.Lock()
	delete(r.pending, s.id)
	if s.state == statePending {
		s.state = stateRemoved
	}
	r.mu.Unlock()
}

// Register adds s to the broadcast set and starts its writer. Registering an
// already active session is a no-op; nicknames are not checked for uniqueness.
func (r *Router) Register(s *Session) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRouterClosed
	}
	delete(r.pending, s.id)
	switch s.state {
	case stateActive:
		r.mu.Unlock()
		return nil
	case stateRemoved:
		r.mu.Unlock()
		return ErrSessionRemoved
	}
	s.state = stateActive
	r.sessions[s.id] = s
	count := len(r.sessions)
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		s.writePump()
	}()

	r.metrics.sessionsActive.Set(float64(count))
	r.log.Info().
		Str("session", s.id.String()).
		Str("nick", s.nickname).
		Str("remote", s.RemoteAddr()).
		Int("total", count).
		Msg("Session registered")
	return nil
}

// Deregister removes s and releases its connection. It is idempotent and
// reports whether this call did the removal.
func (r *Router) Deregister(s *Session) bool {
	r.mu.Lock()
	removed := r.removeLocked(s)
	count := len(r.sessions)
	r.mu.Unlock()

	if !removed {
		return false
	}

	s.closeConn()
	r.metrics.sessionsActive.Set(float64(count))
	r.log.Info().
		Str("session", s.id.String()).
		Str("nick", s.nickname).
		Int("total", count).
		Msg("Session unregistered")
	return true
}

// removeLocked must be called with r.mu held. Closing the send queue stops the
// session's writer; nothing is enqueued for s after this returns.
func (r *Router) removeLocked(s *Session) bool {
	if _, ok := r.sessions[s.id]; !ok {
		return false
	}
	delete(r.sessions, s.id)
	s.state = stateRemoved
	close(s.send)
	return true
}

// Broadcast queues frame for every registered session except sender and
// returns how many sessions it was queued for. A nil sender means the frame
// came from outside this process and is delivered to everyone. Sessions whose
// queue overflows under the disconnect policy are evicted without aborting
// delivery to the rest.
func (r *Router) Broadcast(sender *Session, frame string) int {
	policy := r.cfg.Backpressure

	r.mu.Lock()
	if sender != nil {
		if _, ok := r.sessions[sender.id]; !ok {
			r.mu.Unlock()
			return 0
		}
	}

	var evicted []*Session
	count, drops := 0, 0
	for id, s := range r.sessions {
		if sender != nil && id == sender.id {
			continue
		}
		switch enqueue(s.send, frame, policy) {
		case delivered:
			count++
		case displaced:
			count++
			drops++
		case dropped:
			drops++
		case evict:
			if r.removeLocked(s) {
				evicted = append(evicted, s)
			}
		}
	}
	remaining := len(r.sessions)
	relay := r.relay
	r.mu.Unlock()

	r.metrics.broadcasts.Inc()
	r.metrics.deliveries.Add(float64(count))
	if drops > 0 {
		r.metrics.dropped.WithLabelValues(string(policy)).Add(float64(drops))
		r.log.Warn().Int("dropped", drops).Str("policy", string(policy)).Msg("Send queue full; frames dropped")
	}
	if len(evicted) > 0 {
		r.removeFailedSessions(evicted, remaining)
	}

	if relay != nil && sender != nil {
		if err := relay.Publish(frame); err != nil {
			r.log.Warn().Err(err).Msg("Relay publish failed")
		}
	}

	return count
}

// removeFailedSessions closes sessions evicted during a broadcast.
func (r *Router) removeFailedSessions(evicted []*Session, remaining int) {
	for _, s := range evicted {
		s.closeConn()
		r.log.Warn().
			Str("session", s.id.String()).
			Str("nick", s.nickname).
			Msg("Session removed due to full send queue")
	}
	r.metrics.evicted.Add(float64(len(evicted)))
	r.metrics.sessionsActive.Set(float64(remaining))
}

// DeliverRemote fans out a frame received from another instance to every
// local session.
func (r *Router) DeliverRemote(frame string) int {
	if err := protocol.ValidateFrame(frame, r.cfg.MaxMessageSize); err != nil {
		r.log.Warn().Err(err).Msg("Discarding invalid relayed frame")
		return 0
	}
	return r.Broadcast(nil, frame)
}

// Count returns the number of registered sessions.
func (r *Router) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Nicknames returns the sorted nicknames of registered sessions.
func (r *Router) Nicknames() []string {
	r.mu.Lock()
	names := lo.Map(lo.Values(r.sessions), func(s *Session, _ int) string {
		return s.nickname
	})
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// lookup returns the registered session with the given id.
func (r *Router) lookup(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Shutdown stops accepting sessions, closes every connection and waits for
// session goroutines to finish or the timeout to pass.
func (r *Router) Shutdown(timeout time.Duration) error {
	r.log.Info().Msg("Initiating router shutdown...")

	r.mu.Lock()
	r.closed = true
	active := lo.Values(r.sessions)
	pending := lo.Values(r.pending)
	for _, s := range active {
		r.removeLocked(s)
	}
	r.mu.Unlock()

	for _, s := range active {
		s.closeConn()
	}
	for _, s := range pending {
		s.closeConn()
	}
	r.metrics.sessionsActive.Set(0)
	r.log.Info().Int("active", len(active)).Int("pending", len(pending)).Msg("Closed session connections")

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info().Msg("Router shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		r.log.Warn().Msg("Router shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
