// Package websocket reads the public Meetup RSVP stream.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/stream"
)

// Config configures the websocket source
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	HandshakeTime  time.Duration
}

// Source reads one RSVP per websocket text frame. Read errors drop the
// connection and the next Receive reconnects after ReconnectDelay.
type Source struct {
	config Config
	dialer *websocket.Dialer
	log    *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	seq    uint64
}

// NewSource creates a websocket stream source. The connection is opened lazily.
func NewSource(config Config, log *zap.Logger) *Source {
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 5 * time.Second
	}
	if config.HandshakeTime <= 0 {
		config.HandshakeTime = 10 * time.Second
	}

	return &Source{
		config: config,
		dialer: &websocket.Dialer{HandshakeTimeout: config.HandshakeTime},
		log:    log,
	}
}

// Name identifies the source
func (s *Source) Name() string { return "websocket" }

// Receive returns the next frame, connecting or reconnecting when needed
func (s *Source) Receive(ctx context.Context) ([]stream.Message, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}

	_, body, err := conn.ReadMessage()
	if err != nil {
		s.drop(conn)
		if s.isClosed() {
			return nil, stream.ErrClosed
		}
		s.log.Warn("Websocket read failed, reconnecting",
			zap.Duration("delay", s.config.ReconnectDelay),
			zap.Error(err))
		if err := sleep(ctx, s.config.ReconnectDelay); err != nil {
			return nil, err
		}
		return nil, nil
	}

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("ws-%d", s.seq)
	s.mu.Unlock()

	return []stream.Message{stream.NewMessage(id, body, nil)}, nil
}

func (s *Source) connection(ctx context.Context) (*websocket.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, stream.ErrClosed
	}
	if s.conn != nil {
		return s.conn, nil
	}

	conn, _, err := s.dialer.DialContext(ctx, s.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", s.config.URL, err)
	}

	s.log.Info("Connected to RSVP stream", zap.String("url", s.config.URL))
	s.conn = conn
	return conn, nil
}

func (s *Source) drop(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == conn {
		_ = conn.Close()
		s.conn = nil
	}
}

func (s *Source) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes the connection; a blocked Receive returns ErrClosed
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to close websocket: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ stream.Source = (*Source)(nil)
