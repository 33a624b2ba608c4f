package aggclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikiprotocol/miki-relayer/pkg/logger"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
)

// wsTestServer upgrades incoming connections and pushes queued intents. Each
// accepted connection runs a read pump so client pings get the default pong
// reply.
type wsTestServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu           sync.Mutex
	conns        []*websocket.Conn
	queries      []string
	connects     int
	dropFirst    int
	swallowPings bool
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()

	s := &wsTestServer{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.RawQuery)
		s.connects++
		drop := s.connects <= s.dropFirst
		if !drop {
			s.conns = append(s.conns, conn)
		}
		if s.swallowPings {
			conn.SetPingHandler(func(string) error { return nil })
		}
		s.mu.Unlock()

		if drop {
			_ = conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *wsTestServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *wsTestServer) push(t *testing.T, intent models.Intent) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.conns)
	require.NoError(t, s.conns[len(s.conns)-1].WriteJSON(intent))
}

func (s *wsTestServer) dropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}

func (s *wsTestServer) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStreamDeliversIntents(t *testing.T) {
	server := newWSTestServer(t)

	var mu sync.Mutex
	var received []models.Intent
	handler := func(intent models.Intent) {
		mu.Lock()
		received = append(received, intent)
		mu.Unlock()
	}

	filter := Filter{SrcChains: []int64{1}, DstChains: []int64{8453}}
	stream := NewStream(server.wsURL(), "across", filter, handler, &logger.EmptyLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, stream.Start(ctx))
	defer stream.Stop()

	waitFor(t, func() bool { return server.connectCount() == 1 }, "stream did not connect")
	server.push(t, models.Intent{ID: "intent-1", Source: "across"})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, "intent not delivered")

	mu.Lock()
	assert.Equal(t, "intent-1", received[0].ID)
	mu.Unlock()
}

func TestStreamFilterQuery(t *testing.T) {
	server := newWSTestServer(t)

	filter := Filter{SrcChains: []int64{1, 10}, DstChains: []int64{8453}}
	stream := NewStream(server.wsURL(), "across", filter, func(models.Intent) {}, &logger.EmptyLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, stream.Start(ctx))
	defer stream.Stop()

	waitFor(t, func() bool { return server.connectCount() == 1 }, "stream did not connect")

	server.mu.Lock()
	query := server.queries[0]
	server.mu.Unlock()

	assert.Contains(t, query, "protocol=across")
	assert.Contains(t, query, "src=1")
	assert.Contains(t, query, "src=10")
	assert.Contains(t, query, "dst=8453")
}

func TestStreamReconnects(t *testing.T) {
	server := newWSTestServer(t)

	var mu sync.Mutex
	var received []string
	handler := func(intent models.Intent) {
		mu.Lock()
		received = append(received, intent.ID)
		mu.Unlock()
	}

	stream := NewStream(server.wsURL(), "across", Filter{}, handler, &logger.EmptyLogger{})
	stream.ReconnectInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, stream.Start(ctx))
	defer stream.Stop()

	waitFor(t, func() bool { return server.connectCount() == 1 }, "stream did not connect")

	// Kill the connection and wait for the stream to come back.
	server.dropConnections()
	waitFor(t, func() bool { return server.connectCount() >= 2 }, "stream did not reconnect")

	// Intents keep flowing on the new connection, each delivered once.
	server.push(t, models.Intent{ID: "after-reconnect"})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, "intent not delivered after reconnect")

	mu.Lock()
	assert.Equal(t, []string{"after-reconnect"}, received)
	mu.Unlock()
}

func TestStreamSurvivesFlappingEndpoint(t *testing.T) {
	server := newWSTestServer(t)
	server.mu.Lock()
	server.dropFirst = 3
	server.mu.Unlock()

	var mu sync.Mutex
	var received []string
	handler := func(intent models.Intent) {
		mu.Lock()
		received = append(received, intent.ID)
		mu.Unlock()
	}

	stream := NewStream(server.wsURL(), "across", Filter{}, handler, &logger.EmptyLogger{})
	stream.ReconnectInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, stream.Start(ctx))
	defer stream.Stop()

	// The endpoint accepts then immediately drops the first connections. The
	// stream must keep retrying until one sticks.
	waitFor(t, func() bool { return server.connectCount() >= 4 }, "stream gave up on flapping endpoint")

	server.push(t, models.Intent{ID: "after-flap"})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, "intent not delivered after flapping")

	mu.Lock()
	assert.Equal(t, []string{"after-flap"}, received)
	mu.Unlock()
}

func TestStreamIdleConnectionStaysUp(t *testing.T) {
	server := newWSTestServer(t)

	var mu sync.Mutex
	var received []string
	handler := func(intent models.Intent) {
		mu.Lock()
		received = append(received, intent.ID)
		mu.Unlock()
	}

	stream := NewStream(server.wsURL(), "across", Filter{}, handler, &logger.EmptyLogger{})
	stream.ReconnectInterval = 20 * time.Millisecond
	stream.LivenessInterval = 60 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, stream.Start(ctx))
	defer stream.Stop()

	waitFor(t, func() bool { return server.connectCount() == 1 }, "stream did not connect")

	// No intents flow, but the server answers pings. Several liveness windows
	// pass without the connection being churned.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, server.connectCount())

	server.push(t, models.Intent{ID: "after-idle"})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, "intent not delivered on idle connection")
}

func TestStreamReconnectsWhenPingsUnanswered(t *testing.T) {
	server := newWSTestServer(t)
	server.mu.Lock()
	server.swallowPings = true
	server.mu.Unlock()

	stream := NewStream(server.wsURL(), "across", Filter{}, func(models.Intent) {}, &logger.EmptyLogger{})
	stream.ReconnectInterval = 20 * time.Millisecond
	stream.LivenessInterval = 40 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, stream.Start(ctx))
	defer stream.Stop()

	// The server discards pings, so no pong ever refreshes the connection and
	// the liveness check must tear it down and reconnect.
	waitFor(t, func() bool { return server.connectCount() >= 2 }, "unresponsive connection was not replaced")
}

func TestStreamStopIsIdempotent(t *testing.T) {
	server := newWSTestServer(t)

	stream := NewStream(server.wsURL(), "across", Filter{}, func(models.Intent) {}, &logger.EmptyLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, stream.Start(ctx))

	stream.Stop()
	stream.Stop()
}
