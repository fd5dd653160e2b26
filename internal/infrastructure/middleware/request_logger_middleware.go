package middleware

import (
	"time"

	"liverelay/internal/core/ports"
	rlog "liverelay/pkg/logger"
	"liverelay/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id (reusing an incoming
// X-Request-ID) and logs it when the handler returns. Streaming requests
// are logged when the stream ends.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	cl := rlog.NewContextLogger(logger)

	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = utils.GenerateRequestID()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(rlog.WithRequestID(c.Request.Context(), id))

		start := time.Now()
		c.Next()

		cl.LogRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Milliseconds())
	}
}

// PushMetricsMiddleware records the final status of requests to pushPath.
// Register it outside ErrorHandlerMiddleware so rendered errors are counted.
func PushMetricsMiddleware(pushPath string, metrics ports.RelayMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Request.URL.Path == pushPath && c.Request.Method == "POST" {
			metrics.PushHandled(c.Writer.Status())
		}
	}
}
