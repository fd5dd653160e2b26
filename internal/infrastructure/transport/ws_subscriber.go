package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"liverelay/internal/core/domain"
	"liverelay/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SocketConfig tunes a WebSocket subscriber.
type SocketConfig struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
	Buffer       int
}

func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadLimit:    4 * 1024,
		Buffer:       32,
	}
}

// SocketSubscriber is a WebSocket consumer. Only Run writes to the connection.
type SocketSubscriber struct {
	id   string
	conn *websocket.Conn
	cfg  SocketConfig

	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
	open      atomic.Bool

	logger *zap.SugaredLogger
}

func NewSocketSubscriber(conn *websocket.Conn, cfg SocketConfig, logger *zap.SugaredLogger) *SocketSubscriber {
	def := DefaultSocketConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &SocketSubscriber{
		id:     utils.GenerateSubscriberID(string(domain.TransportWebSocket)),
		conn:   conn,
		cfg:    cfg,
		queue:  make(chan []byte, cfg.Buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
	s.open.Store(true)
	return s
}

func (s *SocketSubscriber) ID() string { return s.id }

func (s *SocketSubscriber) Transport() domain.Transport { return domain.TransportWebSocket }

// IsOpen reports false as soon as the peer closed or the read side failed.
func (s *SocketSubscriber) IsOpen() bool { return s.open.Load() }

// Send queues payload as a text message.
func (s *SocketSubscriber) Send(payload []byte) error {
	if !s.open.Load() {
		return domain.ErrSubscriberClosed
	}
	select {
	case <-s.done:
		return domain.ErrSubscriberClosed
	case s.queue <- payload:
		return nil
	default:
		return domain.ErrSubscriberSlow
	}
}

// Close stops Run, which then sends a close frame. Safe to call more than once.
func (s *SocketSubscriber) Close() {
	s.closeOnce.Do(func() {
		s.open.Store(false)
		close(s.done)
	})
}

// Run pumps queued messages and pings until the peer goes away, the
// subscriber is closed, or ctx ends. It returns an error only when a write
// fails; a peer-initiated close returns nil. The connection is closed on return.
func (s *SocketSubscriber) Run(ctx context.Context) error {
	defer s.conn.Close()
	defer s.Close()

	s.conn.SetReadLimit(s.cfg.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	readErr := make(chan error, 1)
	go s.readPump(readErr)

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.writeClose(websocket.CloseGoingAway, "server shutting down")
			return nil

		case <-s.done:
			s.writeClose(websocket.CloseGoingAway, "closed by relay")
			return nil

		case err := <-readErr:
			s.open.Store(false)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Debugw("websocket read ended", "subscriber_id", s.id, "error", err)
			}
			return nil

		case payload := <-s.queue:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return fmt.Errorf("websocket write failed: %w", err)
			}

		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return fmt.Errorf("websocket ping failed: %w", err)
			}
		}
	}
}

// readPump discards client messages; reading is what processes pongs and close frames.
func (s *SocketSubscriber) readPump(errc chan<- error) {
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			errc <- err
			return
		}
	}
}

func (s *SocketSubscriber) writeClose(code int, text string) {
	deadline := time.Now().Add(s.cfg.WriteTimeout)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}
