package http

import (
	"errors"
	"net/http"
	"time"

	"liverelay/internal/core/domain"
	"liverelay/internal/core/ports"
	"liverelay/internal/core/services"
	"liverelay/internal/infrastructure/middleware"
	"liverelay/internal/infrastructure/monitoring"
	"liverelay/internal/infrastructure/transport"
	apperrors "liverelay/pkg/errors"
	rlog "liverelay/pkg/logger"
	"liverelay/pkg/tracing"
	"liverelay/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Paths are the routes the relay answers on.
type Paths struct {
	Health string `json:"health"`
	SSE    string `json:"sse"`
	WS     string `json:"ws"`
	Push   string `json:"push"`
}

// HandlerConfig holds the handler's request-level settings.
type HandlerConfig struct {
	Paths            Paths
	MaxBodyBytes     int64
	ValidatePush     bool
	SubscriberBuffer int
	Socket           transport.SocketConfig
	ExtraPaths       []string // listed in 404 responses, e.g. /metrics
}

type RelayHandler struct {
	relay      ports.RelayService
	authorizer ports.PushAuthorizer
	health     *monitoring.HealthChecker
	cfg        HandlerConfig
	upgrader   websocket.Upgrader
	started    time.Time
	logger     *zap.SugaredLogger
}

func NewRelayHandler(
	relay ports.RelayService,
	authorizer ports.PushAuthorizer,
	health *monitoring.HealthChecker,
	cfg HandlerConfig,
	logger *zap.SugaredLogger,
) *RelayHandler {
	if health == nil {
		health = monitoring.NewHealthChecker()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RelayHandler{
		relay:      relay,
		authorizer: authorizer,
		health:     health,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			// viewers are embedded in decks served from arbitrary origins
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		started: time.Now(),
		logger:  logger,
	}
}

// SetupRoutes registers the relay routes. pushMiddleware runs before Push.
func (h *RelayHandler) SetupRoutes(router *gin.Engine, pushMiddleware ...gin.HandlerFunc) {
	router.GET(h.cfg.Paths.Health, h.Health)
	router.GET(h.cfg.Paths.SSE, h.SubscribeSSE)
	router.GET(h.cfg.Paths.WS, h.SubscribeWS)
	router.POST(h.cfg.Paths.Push, append(pushMiddleware, h.Push)...)
	router.NoRoute(h.NotFound)
}

func (h *RelayHandler) Health(c *gin.Context) {
	stats := h.relay.Stats()
	status := h.health.CheckAll(c.Request.Context())

	body := gin.H{
		"ok":       status.Status == "healthy",
		"status":   status.Status,
		"mode":     stats.Mode,
		"paths":    h.cfg.Paths,
		"pushAuth": h.authorizer.Enabled(),
		"subscribers": gin.H{
			"sse": stats.SSESubscribers,
			"ws":  stats.WSSubscribers,
		},
		"uptime": int64(time.Since(h.started).Seconds()),
		"checks": status.Checks,
	}
	if !stats.LastBroadcastAt.IsZero() {
		body["lastBroadcastAt"] = stats.LastBroadcastAt.UnixMilli()
	}

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}

// SubscribeSSE holds the request open as an event stream until the client
// goes away, a write fails, or the relay evicts the subscriber.
func (h *RelayHandler) SubscribeSSE(c *gin.Context) {
	sub, err := transport.NewStreamSubscriber(c.Writer, h.cfg.SubscriberBuffer)
	if err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "streaming unsupported", http.StatusInternalServerError))
		return
	}
	if err := h.relay.AddSubscriber(sub); err != nil {
		_ = c.Error(subscribeError(err))
		return
	}

	ctx := rlog.WithSubscriberID(c.Request.Context(), sub.ID())
	ctx, span := tracing.TraceSubscription(ctx, string(domain.TransportSSE), sub.ID())
	defer span.End()

	if err := transport.WriteHeaders(c.Writer); err != nil {
		h.relay.RemoveSubscriber(sub, domain.EvictWriteError)
		return
	}

	reason := domain.EvictDisconnect
	if err := sub.Run(ctx); err != nil {
		reason = domain.EvictWriteError
		tracing.RecordError(ctx, err)
	}
	h.relay.RemoveSubscriber(sub, reason)
	h.logger.Debugw("sse subscriber finished", "subscriber_id", sub.ID(), "reason", reason)
}

// SubscribeWS upgrades the request and pumps broadcasts to the socket.
func (h *RelayHandler) SubscribeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied
		h.logger.Debugw("websocket upgrade failed", "error", err)
		return
	}

	sub := transport.NewSocketSubscriber(conn, h.cfg.Socket, h.logger)
	if err := h.relay.AddSubscriber(sub); err != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	ctx := rlog.WithSubscriberID(c.Request.Context(), sub.ID())
	ctx, span := tracing.TraceSubscription(ctx, string(domain.TransportWebSocket), sub.ID())
	defer span.End()

	reason := domain.EvictDisconnect
	if err := sub.Run(ctx); err != nil {
		reason = domain.EvictWriteError
		tracing.RecordError(ctx, err)
	}
	h.relay.RemoveSubscriber(sub, reason)
	h.logger.Debugw("websocket subscriber finished", "subscriber_id", sub.ID(), "reason", reason)
}

// Push broadcasts the request body. Auth and rate limiting run as middleware.
func (h *RelayHandler) Push(c *gin.Context) {
	body, err := ReadBody(c.Writer, c.Request, h.cfg.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, domain.ErrBodyTooLarge) {
			c.Header("Connection", "close")
			_ = c.Error(apperrors.NewPayloadTooLargeError(h.cfg.MaxBodyBytes))
			return
		}
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "invalid body", http.StatusBadRequest))
		return
	}

	payload, err := compactJSON(body)
	switch {
	case errors.Is(err, domain.ErrEmptyBody):
		_ = c.Error(apperrors.NewInvalidInputError("empty body"))
		return
	case err != nil:
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, "invalid JSON", http.StatusBadRequest))
		return
	}

	if h.cfg.ValidatePush {
		point, err := services.DecodePoint(payload)
		if err == nil {
			err = services.ValidatePoint(point)
		}
		if err != nil {
			h.logger.Debugw("push rejected by validation",
				"error", err,
				"payload", utils.TruncateString(string(payload), 160),
			)
			_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
	}

	result, err := h.relay.Push(c.Request.Context(), payload)
	if err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "push failed", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "delivered": result.Delivered})
}

// NotFound lists the valid routes. A WebSocket upgrade that reaches it gets
// its connection dropped without an HTTP reply.
func (h *RelayHandler) NotFound(c *gin.Context) {
	if websocket.IsWebSocketUpgrade(c.Request) {
		middleware.DropConnection(c)
		return
	}

	c.JSON(http.StatusNotFound, gin.H{
		"ok":    false,
		"error": "not found",
		"code":  string(apperrors.ErrCodeNotFound),
		"paths": h.pathList(),
	})
}

func (h *RelayHandler) pathList() []string {
	paths := []string{h.cfg.Paths.Health, h.cfg.Paths.SSE, h.cfg.Paths.WS, h.cfg.Paths.Push}
	return append(paths, h.cfg.ExtraPaths...)
}

func subscribeError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, domain.ErrRegistryFull):
		return apperrors.NewServiceUnavailableError("subscriber limit reached")
	case errors.Is(err, domain.ErrRelayStopped):
		return apperrors.NewServiceUnavailableError("relay is shutting down")
	default:
		return apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to subscribe", http.StatusInternalServerError)
	}
}
