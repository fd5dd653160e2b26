package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"liverelay/internal/core/services"
	apperrors "liverelay/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	router := gin.New()
	router.Use(CORSMiddleware([]string{"*"}))
	router.POST("/api/live/push", func(c *gin.Context) { called = true })

	for _, path := range []string{"/api/live/push", "/anything"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodOptions, path, nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code, path)
		assert.Empty(t, w.Body.String(), path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	}
	assert.False(t, called, "preflight must not reach the handler")
}

func TestCORSMiddleware_OriginList(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware([]string{"https://deck.example"}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://deck.example")
	router.ServeHTTP(w, req)
	assert.Equal(t, "https://deck.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req.Header.Set("Origin", "https://evil.example")
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPushAuthMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.POST("/push",
		PushAuthMiddleware(services.NewPushAuthorizer(services.AuthModeToken, "s3cret", "")),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) },
	)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"correct", "Bearer s3cret", http.StatusOK},
		{"lowercase scheme", "bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/push", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				body := decodeBody(t, w)
				assert.Equal(t, false, body["ok"])
				assert.Equal(t, "unauthorized", body["error"])
			}
		})
	}
}

func TestPushAuthMiddleware_DisabledAllowsAll(t *testing.T) {
	router := gin.New()
	router.POST("/push",
		PushAuthMiddleware(services.NewPushAuthorizer(services.AuthModeToken, "", "")),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/push", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandlerMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperrors.NewPayloadTooLargeError(10))
	})
	router.GET("/plain", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
	})
	router.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
		_ = c.Error(assert.AnError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app", nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "PAYLOAD_TOO_LARGE", body["code"])
	assert.Equal(t, map[string]any{"max_bytes": float64(10)}, body["details"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeBody(t, w)["code"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/written", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RecoveryMiddleware(zap.NewNop().Sugar()))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["ok"])
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger(zap.NewNop()))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

type statusRecorder struct {
	services.NopMetrics
	statuses []int
}

func (s *statusRecorder) PushHandled(status int) { s.statuses = append(s.statuses, status) }

func TestPushMetricsMiddleware_CountsRenderedErrors(t *testing.T) {
	metrics := &statusRecorder{}
	router := gin.New()
	router.Use(PushMetricsMiddleware("/push", metrics))
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.POST("/push", func(c *gin.Context) {
		_ = c.Error(apperrors.NewUnauthorizedError("unauthorized"))
	})
	router.GET("/other", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/push", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/other", nil))

	assert.Equal(t, []int{http.StatusUnauthorized}, metrics.statuses)
}
