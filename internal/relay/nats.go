// Package relay federates chat broadcasts between server instances over NATS.
// Every instance publishes the frames its own sessions send and delivers the
// frames published by other instances to its local sessions.
package relay

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/tcpchat/internal/logger"
)

// OriginHeader carries the publishing instance id so it can skip its own frames.
const OriginHeader = "Tcpchat-Origin"

// NATS is a relay backed by a NATS subject.
type NATS struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	origin  string
	deliver func(frame string) int
	log     zerolog.Logger
}

func newNATS(subject string, deliver func(frame string) int) *NATS {
	origin := uuid.NewString()
	return &NATS{
		subject: subject,
		origin:  origin,
		deliver: deliver,
		log:     logger.Component("relay").With().Str("origin", origin).Str("subject", subject).Logger(),
	}
}

// Connect dials url, subscribes to subject and hands foreign frames to deliver.
func Connect(url, subject string, deliver func(frame string) int, opts ...nats.Option) (*NATS, error) {
	r := newNATS(subject, deliver)

	options := append([]nats.Option{
		nats.Name("tcpchat-" + r.origin),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			r.log.Warn().Err(err).Msg("Relay disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			r.log.Info().Str("url", nc.ConnectedUrl()).Msg("Relay reconnected")
		}),
	}, opts...)

	nc, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("relay: connect %s: %w", url, err)
	}

	sub, err := nc.Subscribe(subject, r.handle)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("relay: subscribe %s: %w", subject, err)
	}

	r.nc = nc
	r.sub = sub
	r.log.Info().Str("url", nc.ConnectedUrl()).Msg("Relay connected")
	return r, nil
}

// Origin returns this instance's relay id.
func (r *NATS) Origin() string {
	return r.origin
}

// Publish sends a locally originated frame to the other instances.
func (r *NATS) Publish(frame string) error {
	msg := nats.NewMsg(r.subject)
	msg.Header.Set(OriginHeader, r.origin)
	msg.Data = []byte(frame)
	return r.nc.PublishMsg(msg)
}

func (r *NATS) handle(msg *nats.Msg) {
	if msg.Header.Get(OriginHeader) == r.origin {
		return
	}
	n := r.deliver(string(msg.Data))
	r.log.Debug().Int("recipients", n).Msg("Delivered relayed frame")
}

// Close unsubscribes and drains the connection.
func (r *NATS) Close() error {
	if err := r.sub.Unsubscribe(); err != nil {
		r.log.Warn().Err(err).Msg("Relay unsubscribe failed")
	}
	return r.nc.Drain()
}
