package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"liverelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noFlushWriter struct{ http.ResponseWriter }

type countingRecorder struct {
	*httptest.ResponseRecorder
	flushes atomic.Int32
}

func (c *countingRecorder) Flush() {
	c.ResponseRecorder.Flush()
	c.flushes.Add(1)
}

func TestNewStreamSubscriber_RequiresFlusher(t *testing.T) {
	_, err := NewStreamSubscriber(noFlushWriter{httptest.NewRecorder()}, 4)
	assert.ErrorIs(t, err, ErrStreamingUnsupported)
}

func TestWriteHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteHeaders(rec))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, ": connected\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestStreamSubscriber_FramesDataAndHeartbeat(t *testing.T) {
	rec := &countingRecorder{ResponseRecorder: httptest.NewRecorder()}
	sub, err := NewStreamSubscriber(rec, 4)
	require.NoError(t, err)
	assert.Equal(t, domain.TransportSSE, sub.Transport())
	assert.Contains(t, sub.ID(), "sse_")

	require.NoError(t, sub.Send([]byte(`{"a":1}`)))
	require.NoError(t, sub.Heartbeat())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.flushes.Load() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "data: {\"a\":1}\n\n: ping\n\n", rec.Body.String())
	assert.False(t, sub.IsOpen(), "Run closes the subscriber on return")
}

func TestStreamSubscriber_SlowConsumer(t *testing.T) {
	sub, err := NewStreamSubscriber(httptest.NewRecorder(), 2)
	require.NoError(t, err)

	require.NoError(t, sub.Send([]byte(`1`)))
	require.NoError(t, sub.Send([]byte(`2`)))

	// nobody drains the queue: the third send must fail fast, not block
	start := time.Now()
	err = sub.Send([]byte(`3`))
	assert.ErrorIs(t, err, domain.ErrSubscriberSlow)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestStreamSubscriber_CloseIsIdempotent(t *testing.T) {
	sub, err := NewStreamSubscriber(httptest.NewRecorder(), 2)
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	assert.False(t, sub.IsOpen())
	assert.ErrorIs(t, sub.Send([]byte(`{}`)), domain.ErrSubscriberClosed)
	assert.ErrorIs(t, sub.Heartbeat(), domain.ErrSubscriberClosed)

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done channel not closed")
	}
	// Run on a closed subscriber returns immediately
	assert.NoError(t, sub.Run(context.Background()))
}
