package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/isdelr/account-service/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limit defines a token bucket capacity and window for a route.
type Limit struct {
	Name     string        // logical route name for the key
	Capacity int           // max tokens in the bucket
	Window   time.Duration // window over which capacity refills linearly
}

// Limiter is a Redis token-bucket limiter shared by every replica of the service.
type Limiter struct {
	rdb *redis.Client
	now func() time.Time
}

// New creates a Limiter backed by rdb.
func New(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb, now: time.Now}
}

// ClientIP extracts the client IP from RemoteAddr. Proxy headers are
// left to chi's RealIP middleware, which rewrites RemoteAddr upstream.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		// chi's RealIP middleware stores a bare address.
		return r.RemoteAddr
	}
	return "unknown"
}

// Middleware rejects requests from a client IP once its bucket for limit is empty.
func (l *Limiter) Middleware(limit Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("rl:%s:ip:%s", limit.Name, ClientIP(r))
			allowed, remaining, retryAfter := l.Take(r.Context(), key, limit)
			if !allowed {
				metrics.RecordRateLimited(limit.Name)
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				}
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%.0f", remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// Lua script performs token-bucket operations atomically.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local window = tonumber(ARGV[3]) -- in ms

local bucket = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])

if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

local delta = now - ts
if delta < 0 then delta = 0 end

tokens = math.min(capacity, tokens + (delta * capacity) / window)
ts = now

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", key, "tokens", tostring(tokens), "ts", tostring(ts))
redis.call("PEXPIRE", key, window)

local retryAfterMs = 0
if allowed == 0 then
  retryAfterMs = math.ceil((1 - tokens) * window / capacity)
end

return {allowed, tostring(tokens), retryAfterMs}
`)

// Take removes one token from the bucket at key. It fails open when Redis is unavailable.
func (l *Limiter) Take(ctx context.Context, key string, limit Limit) (allowed bool, remaining float64, retryAfterSec int64) {
	res, err := tokenBucketScript.Run(ctx, l.rdb, []string{key},
		l.now().UnixMilli(), limit.Capacity, limit.Window.Milliseconds()).Slice()
	if err != nil || len(res) != 3 {
		log.Warn().Err(err).Str("key", key).Msg("Rate limiter unavailable, allowing request")
		return true, float64(limit.Capacity), 0
	}

	allowed = toFloat(res[0]) == 1
	remaining = toFloat(res[1])
	if retryMs := toFloat(res[2]); retryMs > 0 {
		retryAfterSec = int64((retryMs + 999) / 1000)
	}
	return allowed, remaining, retryAfterSec
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}
