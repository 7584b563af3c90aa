package relay

import (
	"net"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSkipsOwnOrigin(t *testing.T) {
	var got []string
	r := newNATS("chat", func(frame string) int {
		got = append(got, frame)
		return 1
	})

	own := nats.NewMsg("chat")
	own.Header.Set(OriginHeader, r.Origin())
	own.Data = []byte("A: mine")
	r.handle(own)

	foreign := nats.NewMsg("chat")
	foreign.Header.Set(OriginHeader, "another-instance")
	foreign.Data = []byte("B: theirs")
	r.handle(foreign)

	assert.Equal(t, []string{"B: theirs"}, got)
}

func TestHandleWithoutHeader(t *testing.T) {
	var got []string
	r := newNATS("chat", func(frame string) int {
		got = append(got, frame)
		return 0
	})

	r.handle(&nats.Msg{Subject: "chat", Data: []byte("C: bare")})
	assert.Equal(t, []string{"C: bare"}, got)
}

func TestOriginsAreUnique(t *testing.T) {
	a := newNATS("chat", nil)
	b := newNATS("chat", nil)
	assert.NotEqual(t, a.Origin(), b.Origin())
}

func TestConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Connect("nats://"+addr, "chat", func(string) int { return 0 }, nats.Timeout(500*time.Millisecond))
	assert.Error(t, err)
}
