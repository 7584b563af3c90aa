package client_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/tcpchat/internal/client"
	"github.com/Tyrowin/tcpchat/internal/server"
	"github.com/Tyrowin/tcpchat/internal/testhelpers"
)

func startChatServer(t *testing.T) *server.Server {
	t.Helper()
	cfg := server.NewConfig()
	cfg.ListenAddr = "127.0.0.1:0"

	srv := server.New(*cfg)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Shutdown(2 * time.Second) })
	return srv
}

func join(t *testing.T, srv *server.Server, nickname string) (*client.Session, *testhelpers.Recorder) {
	t.Helper()

	addr := srv.Addr().(*net.TCPAddr)
	cfg := client.DefaultConfig()
	cfg.Host = addr.IP.String()
	cfg.Port = addr.Port
	cfg.Nickname = nickname

	rec := testhelpers.NewRecorder()
	s, err := client.Dial(context.Background(), cfg, rec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), testhelpers.DefaultTimeout)
	defer cancel()
	require.NoError(t, s.WaitReady(ctx))
	return s, rec
}

func TestClientsChatThroughServer(t *testing.T) {
	srv := startChatServer(t)

	a, aRec := join(t, srv, "A")
	b, bRec := join(t, srv, "B")
	_, cRec := join(t, srv, "C")
	require.Eventually(t, func() bool { return srv.Router().Count() == 3 },
		testhelpers.DefaultTimeout, 10*time.Millisecond)

	require.NoError(t, a.Send("hello"))
	bRec.Expect(t, "A: hello")
	cRec.Expect(t, "A: hello")
	aRec.ExpectNone(t, 200*time.Millisecond)

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return srv.Router().Count() == 2 },
		testhelpers.DefaultTimeout, 10*time.Millisecond)
	assert.Zero(t, bRec.LostCount())
}

func TestClientReportsServerShutdown(t *testing.T) {
	srv := startChatServer(t)
	s, rec := join(t, srv, "A")
	require.Eventually(t, func() bool { return srv.Router().Count() == 1 },
		testhelpers.DefaultTimeout, 10*time.Millisecond)

	require.NoError(t, srv.Shutdown(2*time.Second))

	rec.WaitLost(t)
	assert.Equal(t, client.StateClosed, s.State())
	assert.ErrorIs(t, s.Send("still there?"), client.ErrClosed)
	assert.Equal(t, 1, rec.LostCount())
}
