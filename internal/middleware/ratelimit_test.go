package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vexpense/vexpense/internal/cache"
)

type failingRateStore struct{}

func (failingRateStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("store offline")
}

func newRateLimitedRouter(store RateStore, limit int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(store, "test", limit, window))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/pong", func(c *gin.Context) { c.String(http.StatusOK, "ping") })
	return r
}

func hit(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newMemoryRateStore(func() time.Time { return clock })
	r := newRateLimitedRouter(store, 2, time.Minute)

	for i := 0; i < 2; i++ {
		w := hit(r, "/ping")
		require.Equal(t, http.StatusOK, w.Code)
	}
	require.Equal(t, "1", hit(r, "/pong").Header().Get("X-RateLimit-Remaining"))

	w := hit(r, "/ping")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "RATE_LIMIT_EXCEEDED", decodeError(t, w).Code)
	require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "60", w.Header().Get("Retry-After"))

	clock = clock.Add(time.Minute)
	require.Equal(t, http.StatusOK, hit(r, "/ping").Code)
}

func TestRateLimitCountsRoutesSeparately(t *testing.T) {
	r := newRateLimitedRouter(NewMemoryRateStore(), 1, time.Minute)

	require.Equal(t, http.StatusOK, hit(r, "/ping").Code)
	require.Equal(t, http.StatusOK, hit(r, "/pong").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/ping").Code)
}

func TestRateLimitWithRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewCacheRateStore(cache.NewRedisStoreFromClient(client))
	r := newRateLimitedRouter(store, 1, time.Minute)

	require.Equal(t, http.StatusOK, hit(r, "/ping").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(r, "/ping").Code)

	mr.FastForward(time.Minute)
	require.Equal(t, http.StatusOK, hit(r, "/ping").Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := newRateLimitedRouter(failingRateStore{}, 1, time.Minute)

	require.Equal(t, http.StatusOK, hit(r, "/ping").Code)
	require.Equal(t, http.StatusOK, hit(r, "/ping").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := newRateLimitedRouter(nil, 0, time.Minute)

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, hit(r, "/ping").Code)
	}
}

func TestNewCacheRateStoreNil(t *testing.T) {
	require.Nil(t, NewCacheRateStore(nil))
}
