package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"liverelay/internal/core/domain"
	"liverelay/internal/core/ports"

	"github.com/stretchr/testify/mock"
)

type MockSubscriber struct {
	mock.Mock
	transport domain.Transport
}

func newMockSubscriber(transport domain.Transport) *MockSubscriber {
	return &MockSubscriber{transport: transport}
}

func (m *MockSubscriber) ID() string                  { return "mock-" + string(m.transport) }
func (m *MockSubscriber) Transport() domain.Transport { return m.transport }

func (m *MockSubscriber) Send(payload []byte) error {
	args := m.Called(payload)
	return args.Error(0)
}

func (m *MockSubscriber) IsOpen() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockSubscriber) Close() {
	m.Called()
}

type MockHeartbeatSubscriber struct {
	MockSubscriber
}

func (m *MockHeartbeatSubscriber) Heartbeat() error {
	args := m.Called()
	return args.Error(0)
}

type MockPointBus struct {
	mock.Mock
}

func (m *MockPointBus) Publish(ctx context.Context, payload []byte) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockPointBus) Subscribe(ctx context.Context, handler func(payload []byte)) error {
	args := m.Called(ctx, handler)
	return args.Error(0)
}

func (m *MockPointBus) Close() error {
	args := m.Called()
	return args.Error(0)
}

// fakeSubscriber is a queue-backed subscriber for tests that need many
// members or concurrent access.
type fakeSubscriber struct {
	id        string
	transport domain.Transport
	queue     chan []byte
	open      atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}
	beats     atomic.Int32
}

var _ ports.HeartbeatSubscriber = (*fakeSubscriber)(nil)

func newFakeSubscriber(id string, transport domain.Transport, buffer int) *fakeSubscriber {
	s := &fakeSubscriber{
		id:        id,
		transport: transport,
		queue:     make(chan []byte, buffer),
		closed:    make(chan struct{}),
	}
	s.open.Store(true)
	return s
}

func (s *fakeSubscriber) ID() string                  { return s.id }
func (s *fakeSubscriber) Transport() domain.Transport { return s.transport }
func (s *fakeSubscriber) IsOpen() bool                { return s.open.Load() }

func (s *fakeSubscriber) Send(payload []byte) error {
	if !s.open.Load() {
		return domain.ErrSubscriberClosed
	}
	select {
	case s.queue <- payload:
		return nil
	default:
		return domain.ErrSubscriberSlow
	}
}

func (s *fakeSubscriber) Heartbeat() error {
	if !s.open.Load() {
		return domain.ErrSubscriberClosed
	}
	s.beats.Add(1)
	return nil
}

func (s *fakeSubscriber) Close() {
	s.closeOnce.Do(func() {
		s.open.Store(false)
		close(s.closed)
	})
}

func (s *fakeSubscriber) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *fakeSubscriber) next(within time.Duration) ([]byte, bool) {
	select {
	case p := <-s.queue:
		return p, true
	case <-time.After(within):
		return nil, false
	}
}

// recordingMetrics counts evictions by reason.
type recordingMetrics struct {
	NopMetrics
	mu       sync.Mutex
	removed  map[domain.EvictReason]int
	results  []domain.BroadcastResult
	sent     int
	hbEvicts int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{removed: make(map[domain.EvictReason]int)}
}

func (m *recordingMetrics) SubscriberRemoved(_ domain.Transport, reason domain.EvictReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed[reason]++
}

func (m *recordingMetrics) BroadcastCompleted(result domain.BroadcastResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func (m *recordingMetrics) HeartbeatCompleted(sent, evicted int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent += sent
	m.hbEvicts += evicted
}

func (m *recordingMetrics) removedFor(reason domain.EvictReason) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed[reason]
}
