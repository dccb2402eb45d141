package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"Investa/pkg/errors"
)

func newEngine(mw ...app.HandlerFunc) *route.Engine {
	e := route.NewEngine(config.NewOptions(nil))
	e.Use(mw...)
	e.GET("/ping", func(ctx context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, "pong")
	})
	e.GET("/panic", func(ctx context.Context, c *app.RequestContext) {
		panic("boom")
	})
	return e
}

func TestCORS_LoopbackOrigins(t *testing.T) {
	e := newEngine(CORSMiddleware([]string{"https://app.investa.test/"}))

	cases := []struct {
		origin string
		status int
	}{
		{"http://localhost:5173", http.StatusOK},
		{"http://127.0.0.1:3000", http.StatusOK},
		{"https://app.investa.test", http.StatusOK},
		{"https://evil.example", http.StatusForbidden},
	}
	for _, tc := range cases {
		w := ut.PerformRequest(e, http.MethodGet, "/ping", nil, ut.Header{Key: "Origin", Value: tc.origin})
		resp := w.Result()
		assert.Equal(t, tc.status, resp.StatusCode(), tc.origin)
		if tc.status == http.StatusOK {
			assert.Equal(t, tc.origin, string(resp.Header.Peek("Access-Control-Allow-Origin")))
		} else {
			assert.Empty(t, resp.Header.Peek("Access-Control-Allow-Origin"))
		}
	}

	// 没有 Origin 的请求来自非浏览器客户端，直接放行
	w := ut.PerformRequest(e, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS_Preflight(t *testing.T) {
	e := newEngine(CORSMiddleware(nil))
	w := ut.PerformRequest(e, http.MethodOptions, "/ping", nil, ut.Header{Key: "Origin", Value: "http://localhost:5173"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestID(t *testing.T) {
	e := newEngine(RequestIDMiddleware())

	w := ut.PerformRequest(e, http.MethodGet, "/ping", nil)
	generated := string(w.Result().Header.Peek(RequestIDHeader))
	assert.Len(t, generated, 36)

	w = ut.PerformRequest(e, http.MethodGet, "/ping", nil, ut.Header{Key: RequestIDHeader, Value: "req-1"})
	assert.Equal(t, "req-1", string(w.Result().Header.Peek(RequestIDHeader)))
}

type staticGate struct{ err error }

func (s staticGate) EnsureSession(context.Context) error { return s.err }

func TestRequireSession(t *testing.T) {
	w := ut.PerformRequest(newEngine(RequireSession(staticGate{err: errors.Unauthorized})), http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", gjson.GetBytes(w.Body.Bytes(), "error.code").String())

	// 刷新失败后会话被清除
	w = ut.PerformRequest(newEngine(RequireSession(staticGate{err: errors.LoggedOut})), http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "SESSION_LOGGED_OUT", gjson.GetBytes(w.Body.Bytes(), "error.code").String())

	w = ut.PerformRequest(newEngine(RequireSession(staticGate{})), http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRecover(t *testing.T) {
	e := newEngine(RecoverMiddleware(), RequestIDMiddleware())

	w := ut.PerformRequest(e, http.MethodGet, "/panic", nil, ut.Header{Key: RequestIDHeader, Value: "req-9"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := w.Body.Bytes()
	assert.Equal(t, "INTERNAL_ERROR", gjson.GetBytes(body, "error.code").String())
	assert.NotContains(t, string(body), "boom")
}

func TestRateLimit_PassThroughWithoutRedis(t *testing.T) {
	key := func(parts ...string) string { return "test" }
	e := newEngine(AuthRateLimitMiddleware(nil, 1, key))

	for i := 0; i < 3; i++ {
		w := ut.PerformRequest(e, http.MethodGet, "/ping", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimit_FailsOpenOnRedisError(t *testing.T) {
	client := redislib.NewClient(&redislib.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	e := newEngine(AuthRateLimitMiddleware(client, 1, func(parts ...string) string { return "test" }))
	w := ut.PerformRequest(e, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Header.Peek("X-RateLimit-Limit"))
}

func TestMetricsMiddleware_NoProvider(t *testing.T) {
	e := newEngine(MetricsMiddleware())
	assert.NotPanics(t, func() {
		w := ut.PerformRequest(e, http.MethodGet, "/ping", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
