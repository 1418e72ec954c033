package apimw

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter hands out a token-bucket limiter per client, keyed on the
// authenticated operator's subject when present and falling back to the
// caller's IP otherwise (Policy Engine and Configuration Authority calls
// are unauthenticated service-to-service traffic and always key on IP).
// Idle buckets are swept periodically so long-running services don't leak
// memory as distinct clients come and go.
//
// When built with a Redis client (NewRedisRateLimiter), counting is backed
// by fixed-window counters in Redis instead, so the limit is shared across
// every Management Service replica rather than enforced per-process. A
// Redis error at request time (including the server being unreachable)
// falls back to the in-memory bucket for that request rather than failing
// the request open or closed.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rps      rate.Limit
	burst    int

	redis       *redis.Client
	redisLimit  int64
	redisWindow time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a purely in-process limiter allowing rps
// requests/sec per client with burst capacity. It starts a background
// goroutine that evicts clients idle for more than 10 minutes every 5
// minutes.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go rl.cleanupLoop()
	return rl
}

// NewRedisRateLimiter builds a distributed limiter allowing limit requests
// per window per client, counted in Redis so the limit holds across every
// replica of the calling service rather than per-process. rps/burst size
// the in-memory fallback bucket used whenever Redis itself can't be
// reached for a given request.
func NewRedisRateLimiter(client *redis.Client, limit int64, window time.Duration, rps float64, burst int) *RateLimiter {
	rl := NewRateLimiter(rps, burst)
	rl.redis = client
	rl.redisLimit = limit
	rl.redisWindow = window
	return rl
}

func (rl *RateLimiter) getLimiter(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[clientID]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[clientID] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for id, cl := range rl.limiters {
			if time.Since(cl.lastSeen) > 10*time.Minute {
				delete(rl.limiters, id)
			}
		}
		rl.mu.Unlock()
	}
}

func getClientID(r *http.Request) string {
	if u := UserFromContext(r.Context()); u != nil && u.Subject != "" {
		return u.Subject
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// allowRedis increments the fixed-window counter for clientID and reports
// whether the request is within limit, the remaining window TTL to report
// as Retry-After when it isn't, and whether Redis could be reached at all
// (ok is false on any Redis error, signaling the caller to fall back to
// the in-memory bucket).
func (rl *RateLimiter) allowRedis(ctx context.Context, clientID string) (allowed bool, retryAfter time.Duration, ok bool) {
	window := time.Now().Unix() / int64(rl.redisWindow.Seconds())
	key := fmt.Sprintf("ratelimit:{%s}:%d", clientID, window)

	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, false
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, key, rl.redisWindow).Err(); err != nil {
			return false, 0, false
		}
	}
	if count <= rl.redisLimit {
		return true, 0, true
	}

	ttl, err := rl.redis.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = rl.redisWindow
	}
	return false, ttl, true
}

func (rl *RateLimiter) reject(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set(RateLimitRemainingHeader, "0")
	w.Header().Set(RateLimitResetHeader, strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":{"code":"RATE_LIMIT_EXCEEDED","message":"rate limit exceeded, retry later"}}`))
}

// Middleware rejects requests over the configured rate with 429, and
// otherwise annotates the response with the usual X-RateLimit-* headers.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := getClientID(r)

		if rl.redis != nil {
			w.Header().Set(RateLimitLimitHeader, strconv.FormatInt(rl.redisLimit, 10))
			if allowed, retryAfter, ok := rl.allowRedis(r.Context(), clientID); ok {
				if !allowed {
					rl.reject(w, retryAfter)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			// Redis unreachable for this request: degrade to the
			// in-memory bucket below rather than fail the request.
		}

		limiter := rl.getLimiter(clientID)

		w.Header().Set(RateLimitLimitHeader, strconv.FormatFloat(float64(rl.rps), 'f', 0, 64))

		if !limiter.Allow() {
			rl.reject(w, time.Second)
			return
		}

		w.Header().Set(RateLimitRemainingHeader, strconv.Itoa(int(limiter.Tokens())))
		next.ServeHTTP(w, r)
	})
}
