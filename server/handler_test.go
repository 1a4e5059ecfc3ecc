package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touka-aoi/duplex/domain"
	"github.com/touka-aoi/duplex/endpoint"
	"github.com/touka-aoi/duplex/internal/logger"
	"github.com/touka-aoi/duplex/metrics"
	"github.com/touka-aoi/duplex/queue"
	"github.com/touka-aoi/duplex/transport/coderws"
)

const waitTimeout = 5 * time.Second

func testConfig() endpoint.Config {
	cfg := endpoint.DefaultConfig()
	cfg.Logger = logger.Discard()
	return cfg
}

func startServer(t *testing.T, h *Handler, gatherer prometheus.Gatherer) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Route(h, gatherer))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *endpoint.Endpoint {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	tr, err := coderws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	e, err := endpoint.New(tr, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Dispose() })
	return e
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, waitTimeout, 10*time.Millisecond)
}

func TestHandler_Echo(t *testing.T) {
	h := NewHandler(ModeEcho, testConfig())
	srv := startServer(t, h, nil)
	client := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	require.NoError(t, client.Sender().Write(ctx, domain.Text([]byte("hello"))))
	require.NoError(t, client.Sender().Write(ctx, domain.Binary([]byte{0x1, 0x2})))

	msg, err := client.Receiver().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageText, msg.Kind())
	assert.Equal(t, "hello", string(msg.Payload()))

	msg, err = client.Receiver().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageBinary, msg.Kind())
	assert.Equal(t, []byte{0x1, 0x2}, msg.Payload())
	assert.Equal(t, 1, h.Clients())

	client.Sender().Complete(nil)
	require.NoError(t, client.SendCompletion().Wait(ctx))
	require.NoError(t, client.Close(ctx))
	assert.Equal(t, endpoint.StateClosedNormally, client.State())
	waitFor(t, func() bool { return h.Clients() == 0 })
}

func TestHandler_Broadcast(t *testing.T) {
	h := NewHandler(ModeBroadcast, testConfig())
	srv := startServer(t, h, nil)
	alice := dial(t, srv)
	bob := dial(t, srv)
	waitFor(t, func() bool { return h.hub.Len() == 2 })

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	require.NoError(t, alice.Sender().Write(ctx, domain.Text([]byte("hi bob"))))
	msg, err := bob.Receiver().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi bob", string(msg.Payload()))

	require.NoError(t, bob.Sender().Write(ctx, domain.Text([]byte("hi alice"))))
	msg, err = alice.Receiver().Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi alice", string(msg.Payload()))
	// 送信元には届かない
	assert.Equal(t, 0, alice.Receiver().Len())
}

func TestHandler_ShutdownClosesClients(t *testing.T) {
	h := NewHandler(ModeEcho, testConfig())
	srv := startServer(t, h, nil)
	client := dial(t, srv)
	waitFor(t, func() bool { return h.Clients() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))

	select {
	case <-client.Done():
	case <-ctx.Done():
		t.Fatal("client was not closed")
	}
	assert.Equal(t, endpoint.StateClosedNormally, client.State())
	assert.Equal(t, 0, h.Clients())
}

func TestRoute_HealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Metrics = rec

	h := NewHandler(ModeEcho, cfg)
	srv := startServer(t, h, reg)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	client := dial(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, client.Sender().Write(ctx, domain.Text([]byte("count me"))))
	_, err = client.Receiver().Read(ctx)
	require.NoError(t, err)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "duplex_events_total")
	assert.Contains(t, string(body), `name="messages.received"`)
}

func TestServer_Shutdown(t *testing.T) {
	h := NewHandler(ModeEcho, testConfig())
	s := New("127.0.0.1:0", h, nil)
	assert.Equal(t, "127.0.0.1:0", s.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}

func TestHandler_SenderContract(t *testing.T) {
	tests := []struct {
		mode             Mode
		wantSingleWriter bool
	}{
		{mode: ModeEcho, wantSingleWriter: true},
		{mode: ModeBroadcast, wantSingleWriter: false},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			h := NewHandler(tt.mode, testConfig())
			assert.Equal(t, !tt.wantSingleWriter, h.cfg.MultiSender)

			srv := startServer(t, h, nil)
			dial(t, srv)
			waitFor(t, func() bool { return h.Clients() == 1 })

			h.mu.RLock()
			defer h.mu.RUnlock()
			for _, e := range h.clients {
				q, ok := e.Sender().(*queue.Queue[domain.Message])
				require.True(t, ok)
				assert.Equal(t, tt.wantSingleWriter, q.Options().SingleWriter)
			}
		})
	}
}
