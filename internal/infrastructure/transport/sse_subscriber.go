package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"liverelay/internal/core/domain"
	"liverelay/pkg/utils"
)

var (
	connectedFrame = []byte(": connected\n\n")
	pingFrame      = []byte(": ping\n\n")
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("response writer does not support flushing")

// StreamSubscriber is a Server-Sent Events consumer. Frames are queued by
// Send/Heartbeat and written by Run on the request goroutine.
type StreamSubscriber struct {
	id      string
	w       io.Writer
	flusher http.Flusher

	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
	open      atomic.Bool
}

// NewStreamSubscriber wraps w. buffer bounds the number of frames waiting to be
// written; a subscriber that falls that far behind is treated as slow.
func NewStreamSubscriber(w http.ResponseWriter, buffer int) (*StreamSubscriber, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	if buffer <= 0 {
		buffer = 1
	}

	s := &StreamSubscriber{
		id:      utils.GenerateSubscriberID(string(domain.TransportSSE)),
		w:       w,
		flusher: flusher,
		queue:   make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
	s.open.Store(true)
	return s, nil
}

// WriteHeaders sets the event-stream headers and writes the connected ack.
func WriteHeaders(w http.ResponseWriter) error {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(connectedFrame); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (s *StreamSubscriber) ID() string { return s.id }

func (s *StreamSubscriber) Transport() domain.Transport { return domain.TransportSSE }

func (s *StreamSubscriber) IsOpen() bool { return s.open.Load() }

// Send queues payload as a data frame.
func (s *StreamSubscriber) Send(payload []byte) error {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')
	return s.enqueue(frame)
}

// Heartbeat queues a comment frame, which event-stream clients ignore.
func (s *StreamSubscriber) Heartbeat() error {
	return s.enqueue(pingFrame)
}

func (s *StreamSubscriber) enqueue(frame []byte) error {
	if !s.open.Load() {
		return domain.ErrSubscriberClosed
	}
	select {
	case <-s.done:
		return domain.ErrSubscriberClosed
	case s.queue <- frame:
		return nil
	default:
		return domain.ErrSubscriberSlow
	}
}

// Close stops Run. Safe to call more than once.
func (s *StreamSubscriber) Close() {
	s.closeOnce.Do(func() {
		s.open.Store(false)
		close(s.done)
	})
}

// Done is closed once the subscriber is closed.
func (s *StreamSubscriber) Done() <-chan struct{} { return s.done }

// Run writes queued frames until ctx ends (client went away), the subscriber
// is closed, or a write fails. A write failure is returned and closes the
// subscriber.
func (s *StreamSubscriber) Run(ctx context.Context) error {
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case frame := <-s.queue:
			if _, err := s.w.Write(frame); err != nil {
				return fmt.Errorf("sse write failed: %w", err)
			}
			s.flusher.Flush()
		}
	}
}
