// Package ratelimit implements fixed-window request budgets keyed by client IP.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Result describes the state of a key's window after one request was counted.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter counts a request against key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func newResult(count int64, limit int, resetIn time.Duration) Result {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetIn:   resetIn,
	}
}

type window struct {
	count   int64
	resetAt time.Time
}

// Memory is a single-process fixed-window limiter.
type Memory struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	windows   map[string]*window
	lastSweep time.Time
	now       func() time.Time
}

func NewMemory(limit int, win time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  win,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(m.window)}
		m.windows[key] = w
	}
	w.count++

	return newResult(w.count, m.limit, w.resetAt.Sub(now)), nil
}

// sweep drops finished windows at most once per window length.
func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.window {
		return
	}
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
		}
	}
	m.lastSweep = now
}

// KEYS[1]: counter key
// ARGV[1]: window length in milliseconds
// returns {count, ttl_ms}
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Redis shares windows between instances through a Lua INCR+PEXPIRE script.
type Redis struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
}

func NewRedis(client redis.Scripter, prefix string, limit int, win time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, limit: limit, window: win}
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	values, err := fixedWindowScript.Run(ctx, r.client, []string{r.prefix + key}, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(values) != 2 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply %v", values)
	}
	return newResult(values[0], r.limit, time.Duration(values[1])*time.Millisecond), nil
}

// Middleware rejects requests over the limiter's budget with 429 and message.
// Limiter errors let the request through.
func Middleware(limiter Limiter, keyFunc func(*http.Request) string, message string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 100*time.Millisecond)
			res, err := limiter.Allow(ctx, keyFunc(r))
			cancel()
			if err != nil {
				log.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("RateLimit-Reset", strconv.Itoa(int(math.Ceil(res.ResetIn.Seconds()))))

			if !res.Allowed {
				log.Debug("rate limit exceeded", zap.String("path", r.URL.Path))
				h.Set("Retry-After", h.Get("RateLimit-Reset"))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
