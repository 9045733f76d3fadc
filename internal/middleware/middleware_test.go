package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c)})
	})
	router.GET("/boom", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	return router
}

func do(router http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestInternalAuthMiddleware(t *testing.T) {
	router := newRouter(InternalAuthMiddleware("s3cret"))

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"valid key", "s3cret", http.StatusOK},
		{"wrong key", "nope", http.StatusUnauthorized},
		{"missing key", "", http.StatusUnauthorized},
		{"prefix of key", "s3cre", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.key != "" {
				headers[HeaderInternalAPIKey] = tt.key
			}
			w := do(router, "/ping", headers)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestInternalAuthMiddlewareMisconfigured(t *testing.T) {
	router := newRouter(InternalAuthMiddleware(""))

	w := do(router, "/ping", map[string]string{HeaderInternalAPIKey: ""})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "server misconfigured")
}

func TestServiceRateLimitMiddleware(t *testing.T) {
	router := newRouter(ServiceRateLimitMiddleware(RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 2}))

	assert.Equal(t, http.StatusOK, do(router, "/ping", nil).Code)
	assert.Equal(t, http.StatusOK, do(router, "/ping", nil).Code)

	w := do(router, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Service rate limit exceeded")
}

func TestRateLimitMiddlewareIsPerClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := newRouter(RateLimitMiddleware(ctx, RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 1}))

	alice := map[string]string{"X-Forwarded-For": "10.0.0.1"}
	bob := map[string]string{"X-Forwarded-For": "10.0.0.2"}

	assert.Equal(t, http.StatusOK, do(router, "/ping", alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(router, "/ping", alice).Code)
	assert.Equal(t, http.StatusOK, do(router, "/ping", bob).Code)
}

func TestClientRateLimiterCleanup(t *testing.T) {
	now := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	rl := NewClientRateLimiter(DefaultRateLimiterConfig())
	rl.now = func() time.Time { return now }

	first := rl.GetLimiter("a")
	assert.Same(t, first, rl.GetLimiter("a"))

	now = now.Add(6 * time.Minute)
	rl.GetLimiter("b")

	rl.CleanupOldLimiters(5 * time.Minute)
	assert.Equal(t, 1, rl.Len())
	assert.NotSame(t, first, rl.GetLimiter("a"), "swept limiter is recreated")
}

func TestRequestID(t *testing.T) {
	router := newRouter(RequestID())

	w := do(router, "/ping", nil)
	generated := w.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 36)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, generated, body["request_id"])

	w = do(router, "/ping", map[string]string{HeaderRequestID: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	router := newRouter(RequestID(), RequestLogger(logger))

	do(router, "/ping?lat=45.8", map[string]string{HeaderRequestID: "req-1"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/ping", entry["path"])
	assert.Equal(t, "lat=45.8", entry["query"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, "req-1", entry["request_id"])

	buf.Reset()
	do(router, "/boom", nil)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
}
