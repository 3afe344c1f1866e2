// Package ratelimit limits requests per client IP in fixed windows, backed
// by Redis when configured and by process memory otherwise.
package ratelimit

import (
	"context"
	"log"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/pkg/httputil"
	"github.com/ignite/membership-api/internal/pkg/logger"
)

// LimitMessage is returned with every 429 response.
const LimitMessage = "Too many requests from this IP, please try again later."

// Limiter enforces at most limit requests per client per window.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

// NewLimiter creates a Limiter on store.
func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// New builds a Limiter from config. A configured Redis that cannot be
// reached falls back to the in-memory store.
func New(cfg config.RateLimitConfig) *Limiter {
	var store Store = NewMemoryStore()
	if cfg.RedisURL != "" {
		rs, err := NewRedisStoreFromURL(cfg.RedisURL)
		if err != nil {
			log.Printf("[RateLimiter] Warning: %v; using in-memory counters", err)
		} else {
			store = rs
		}
	}
	return NewLimiter(store, cfg.MaxRequests, cfg.Window())
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, Result, error) {
	res, err := l.store.Hit(ctx, key, l.window)
	if err != nil {
		return true, Result{}, err
	}
	return res.Count <= l.limit, res, nil
}

// Middleware rejects clients over the limit with 429. Store failures let
// the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientIP(r)
		allowed, res, err := l.Allow(r.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request", "client", key, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := l.limit - res.Count
		if remaining < 0 {
			remaining = 0
		}
		h := w.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(l.limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(int(math.Ceil(res.ResetAfter.Seconds()))))

		if !allowed {
			h.Set("Retry-After", h.Get("RateLimit-Reset"))
			logger.Warn("rate limit exceeded", "client", key, "count", res.Count, "limit", l.limit)
			httputil.Error(w, http.StatusTooManyRequests, LimitMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Close releases the store.
func (l *Limiter) Close() error { return l.store.Close() }

// ClientIP returns the request's client address without the port. Proxy
// headers count only when chi's RealIP middleware ran first.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
