package ratelimit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is the state of a client's window after one hit.
type Result struct {
	Count      int
	ResetAfter time.Duration
}

// Store counts hits per key in fixed windows. The window opens on the
// first hit for a key and closes after the configured duration.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (Result, error)
	Close() error
}

// Lua script for an atomic fixed-window hit: INCR, then start the window
// on the first hit. Returns the new count and the remaining TTL in ms.
const fixedWindowLuaScript = `
local key = KEYS[1]
local windowMs = tonumber(ARGV[1])

local count = redis.call("INCR", key)
if count == 1 then
    redis.call("PEXPIRE", key, windowMs)
end

local ttl = redis.call("PTTL", key)
if ttl < 0 then
    redis.call("PEXPIRE", key, windowMs)
    ttl = windowMs
end

return {count, ttl}
`

// RedisStore shares counters between instances through Redis.
type RedisStore struct {
	redis  *redis.Client
	script *redis.Script
	prefix string
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		redis:  client,
		script: redis.NewScript(fixedWindowLuaScript),
		prefix: "ratelimit:membership:",
	}
}

// NewRedisStoreFromURL connects to Redis and verifies the connection.
func NewRedisStoreFromURL(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Printf("[RateLimiter] Connected to Redis at %s", opts.Addr)
	return NewRedisStore(client), nil
}

// Hit records one request for key.
func (s *RedisStore) Hit(ctx context.Context, key string, window time.Duration) (Result, error) {
	res, err := s.script.Run(ctx, s.redis, []string{s.prefix + key}, window.Milliseconds()).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("rate limit script returned %d values", len(res))
	}
	count, ok1 := res[0].(int64)
	ttl, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return Result{}, fmt.Errorf("rate limit script returned %T, %T", res[0], res[1])
	}
	return Result{Count: int(count), ResetAfter: time.Duration(ttl) * time.Millisecond}, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error { return s.redis.Close() }

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps counters in process memory. Counters are per instance.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	now       func() time.Time
	nextSweep time.Time
}

// NewMemoryStore creates an in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry), now: time.Now}
}

// Hit records one request for key.
func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.After(s.nextSweep) {
		for k, e := range s.entries {
			if !now.Before(e.resetAt) {
				delete(s.entries, k)
			}
		}
		s.nextSweep = now.Add(window)
	}

	e, ok := s.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &memoryEntry{resetAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	return Result{Count: e.count, ResetAfter: e.resetAt.Sub(now)}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
