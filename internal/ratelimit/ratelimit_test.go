package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/membership-api/internal/config"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/membership", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRedisStoreFixedWindow(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := store.Hit(ctx, "1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, res.Count)
		assert.True(t, res.ResetAfter > 0 && res.ResetAfter <= time.Minute)
	}
	assert.True(t, mr.Exists("ratelimit:membership:1.2.3.4"))

	mr.FastForward(time.Minute + time.Second)
	res, err := store.Hit(ctx, "1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestMemoryStoreFixedWindow(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	res, _ := store.Hit(ctx, "a", 15*time.Minute)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 15*time.Minute, res.ResetAfter)

	now = now.Add(10 * time.Minute)
	res, _ = store.Hit(ctx, "a", 15*time.Minute)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 5*time.Minute, res.ResetAfter)

	res, _ = store.Hit(ctx, "b", 15*time.Minute)
	assert.Equal(t, 1, res.Count)

	now = now.Add(5 * time.Minute)
	res, _ = store.Hit(ctx, "a", 15*time.Minute)
	assert.Equal(t, 1, res.Count, "window should have reset")
}

func TestMiddlewareLimitsPerClient(t *testing.T) {
	_, client := setupTestRedis(t)
	h := NewLimiter(NewRedisStore(client), 2, 15*time.Minute).Middleware(okHandler())

	rec := doRequest(h, "10.0.0.1:5000")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("RateLimit-Remaining"))
	assert.Equal(t, "900", rec.Header().Get("RateLimit-Reset"))

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:5001").Code)

	rec = doRequest(h, "10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, LimitMessage, body["error"])

	// Another client has its own window.
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.2:5000").Code)
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Duration) (Result, error) {
	return Result{}, errors.New("connection refused")
}
func (failingStore) Close() error { return nil }

func TestMiddlewareFailsOpen(t *testing.T) {
	h := NewLimiter(failingStore{}, 1, time.Minute).Middleware(okHandler())
	for i := 0; i < 3; i++ {
		rec := doRequest(h, "10.0.0.1:1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("RateLimit-Limit"))
	}
}

func TestNewFallsBackToMemory(t *testing.T) {
	l := New(config.RateLimitConfig{MaxRequests: 5, WindowSeconds: 60, RedisURL: "redis://127.0.0.1:1/0"})
	_, ok := l.store.(*MemoryStore)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, l.window)

	mr, _ := setupTestRedis(t)
	l = New(config.RateLimitConfig{MaxRequests: 5, WindowSeconds: 60, RedisURL: "redis://" + mr.Addr()})
	_, ok = l.store.(*RedisStore)
	assert.True(t, ok)
	assert.NoError(t, l.Close())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:4431"
	assert.Equal(t, "192.168.1.9", ClientIP(req))

	req.RemoteAddr = "203.0.113.7"
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}
