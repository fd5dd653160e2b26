package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"liverelay/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newLimitedRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		panic(err)
	}
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.Use(NewHTTPRateLimitMiddleware(cfg))
	router.POST("/push", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func doPush(router http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	return doForwardedPush(router, remoteAddr, "")
}

func doForwardedPush(router http.Handler, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/push", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	router.ServeHTTP(w, req)
	return w
}

// Test that when rate limiting is disabled, middleware lets all requests through.
func TestHTTPRateLimitMiddleware_Disabled_AllowsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = false
	router := newLimitedRouter(cfg)

	for i := 0; i < 5; i++ {
		if w := doPush(router, ""); w.Code != http.StatusOK {
			t.Fatalf("expected status 200 on request %d, got %d", i, w.Code)
		}
	}
}

// Test basic per-IP rate limiting behaviour.
func TestHTTPRateLimitMiddleware_Enabled_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	router := newLimitedRouter(cfg)

	if w := doPush(router, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for first request, got %d", w.Code)
	}

	// Second immediate request from same IP should be limited.
	w := doPush(router, "10.0.0.1:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 for second request, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q", w.Body.String())
	}
	if body["ok"] != false || body["code"] != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("unexpected body %v", body)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	// A different IP has its own bucket.
	if w := doPush(router, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for other IP, got %d", w.Code)
	}
}

func strictLimitConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	return cfg
}

func TestHTTPRateLimitMiddleware_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := newLimitedRouter(strictLimitConfig())

	if w := doForwardedPush(router, "198.51.100.4:4000", "203.0.113.1"); w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for first request, got %d", w.Code)
	}
	// rotating the header must not buy a fresh bucket
	if w := doForwardedPush(router, "198.51.100.4:4000", "203.0.113.2"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 for spoofed X-Forwarded-For, got %d", w.Code)
	}
}

func TestHTTPRateLimitMiddleware_TrustedProxyForwardsClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := strictLimitConfig()
	cfg.Server.TrustedProxies = []string{"10.0.0.1"}
	router := newLimitedRouter(cfg)

	if w := doForwardedPush(router, "10.0.0.1:4000", "203.0.113.7"); w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for first client, got %d", w.Code)
	}
	if w := doForwardedPush(router, "10.0.0.1:4000", "203.0.113.7"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 for repeated client, got %d", w.Code)
	}
	if w := doForwardedPush(router, "10.0.0.1:4000", "203.0.113.8"); w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for another client behind the proxy, got %d", w.Code)
	}
}
