package aggclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mikiprotocol/miki-relayer/pkg/logger"
	"github.com/mikiprotocol/miki-relayer/pkg/metrics"
	"github.com/mikiprotocol/miki-relayer/pkg/models"
)

const (
	// DefaultReconnectInterval is the fixed delay between reconnect attempts.
	// The aggregator is a trusted endpoint, so no backoff is applied.
	DefaultReconnectInterval = 5 * time.Second

	// DefaultLivenessInterval is the longest silence tolerated on the socket
	// before the connection is assumed dead and forced to reconnect. Pings go
	// out at half this interval; pongs and data both count as life.
	DefaultLivenessInterval = 2 * time.Minute

	// pingWriteTimeout bounds the control-frame write on a stuck socket.
	pingWriteTimeout = 10 * time.Second
)

// IntentHandler consumes intents delivered by the stream.
type IntentHandler func(models.Intent)

// Stream maintains a websocket subscription to the aggregator intent feed.
// The subscription is filtered server-side by source and destination chains.
type Stream struct {
	url     string
	handler IntentHandler
	logger  logger.Logger

	ReconnectInterval time.Duration
	LivenessInterval  time.Duration

	mu           sync.Mutex
	conn         *websocket.Conn
	reconnecting bool
	lastMessage  time.Time
	closed       bool
	done         chan struct{}
}

// NewStream creates a stream for the given chain-pair filter. Start must be
// called to open the subscription.
func NewStream(wsURL, protocol string, filter Filter, handler IntentHandler, log logger.Logger) *Stream {
	query := url.Values{}
	query.Set("protocol", protocol)
	for _, chainID := range filter.SrcChains {
		query.Add("src", strconv.FormatInt(chainID, 10))
	}
	for _, chainID := range filter.DstChains {
		query.Add("dst", strconv.FormatInt(chainID, 10))
	}

	return &Stream{
		url:               wsURL + "/ws/intents?" + query.Encode(),
		handler:           handler,
		logger:            log,
		ReconnectInterval: DefaultReconnectInterval,
		LivenessInterval:  DefaultLivenessInterval,
		done:              make(chan struct{}),
	}
}

// Start opens the subscription and keeps it alive until Stop is called or the
// context is cancelled.
func (s *Stream) Start(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return fmt.Errorf("failed to open intent stream: %v", err)
	}
	go s.livenessLoop(ctx)
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop closes the subscription.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("Failed to close websocket: %v", err)
		}
		s.conn = nil
	}
}

func (s *Stream) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}

	conn.SetPongHandler(func(string) error {
		s.mu.Lock()
		s.lastMessage = time.Now()
		s.mu.Unlock()
		return nil
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return conn.Close()
	}
	s.conn = conn
	s.lastMessage = time.Now()
	// The flag must drop before the read loop starts. A connection that dies
	// immediately would otherwise find reconnecting still set and never arm
	// another attempt.
	s.reconnecting = false
	s.mu.Unlock()

	s.logger.Info("Intent stream connected: %s", s.url)
	go s.readLoop(ctx, conn)
	return nil
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var intent models.Intent
		if err := conn.ReadJSON(&intent); err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.logger.Warn("Intent stream read failed: %v", err)
				s.scheduleReconnect(ctx)
			}
			return
		}

		s.mu.Lock()
		s.lastMessage = time.Now()
		s.mu.Unlock()

		s.handler(intent)
	}
}

// scheduleReconnect retries the connection at a fixed interval. Only one
// reconnect loop runs at a time.
func (s *Stream) scheduleReconnect(ctx context.Context) {
	s.mu.Lock()
	if s.reconnecting || s.closed {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.ReconnectInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.WebsocketReconnects.Inc()
				if err := s.connect(ctx); err != nil {
					s.logger.Warn("Intent stream reconnect failed: %v", err)
					continue
				}
				return
			}
		}
	}()
}

// livenessLoop pings the socket and forces a reconnect when neither a pong
// nor a message arrives within the liveness window. A dead TCP connection
// does not always surface as a read error, and an idle feed must not be
// mistaken for one.
func (s *Stream) livenessLoop(ctx context.Context) {
	ticker := time.NewTicker(s.LivenessInterval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			conn := s.conn
			stale := conn != nil && time.Since(s.lastMessage) > s.LivenessInterval
			s.mu.Unlock()
			if conn == nil {
				continue
			}
			if stale {
				s.logger.Warn("Intent stream unresponsive for %s, forcing reconnect", s.LivenessInterval)
				// Closing the connection makes the read loop fail and
				// schedule the reconnect.
				_ = conn.Close()
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteTimeout)); err != nil {
				s.logger.Warn("Intent stream ping failed: %v", err)
				_ = conn.Close()
			}
		}
	}
}
