package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"appraisal/internal/transport/http/api"
)

type RateLimitKeyFunc func(r *http.Request) string

// visitor is one caller's token bucket.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter hands out a token bucket per caller key. Each bucket holds
// limit tokens and refills one every period/limit.
type rateLimiter struct {
	limit    int
	period   time.Duration
	interval time.Duration
	every    rate.Limit
	keyFn    RateLimitKeyFunc
	now      func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	sweepAt  time.Time
}

// RateLimit caps requests per caller. Authenticated callers are keyed by
// employee id, anonymous ones by client address.
func RateLimit(limit int, period time.Duration) func(http.Handler) http.Handler {
	return newRateLimiter(limit, period, actorOrIPKey).middleware(nil)
}

// MutationRateLimit applies half the base budget to writes that fan out
// notifications or run sweeps. Reads are not counted.
func MutationRateLimit(baseLimit int, period time.Duration) func(http.Handler) http.Handler {
	return newRateLimiter(max(baseLimit/2, 1), period, actorOrIPKey).middleware(isGuardedMutation)
}

func newRateLimiter(limit int, period time.Duration, keyFn RateLimitKeyFunc) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	rl := &rateLimiter{
		limit:    limit,
		period:   period,
		keyFn:    keyFn,
		now:      time.Now,
		visitors: map[string]*visitor{},
	}
	if limit > 0 && period > 0 {
		rl.interval = period / time.Duration(limit)
		rl.every = rate.Every(rl.interval)
	}
	return rl
}

func (rl *rateLimiter) middleware(applies func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if applies != nil && !applies(r) {
				next.ServeHTTP(w, r)
				return
			}
			if rl.enforce(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// enforce takes one token for r's caller and writes the 429 response when
// the bucket is empty.
func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.limit <= 0 || rl.every <= 0 {
		return true
	}
	key := rl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}

	now := rl.now()
	limiter := rl.bucket(key, now)
	allowed := limiter.AllowN(now, 1)
	tokens := limiter.TokensAt(now)

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(int(math.Floor(tokens)), 0)))
	h.Set("X-RateLimit-Reset", strconv.Itoa(rl.secondsUntil(tokens, float64(rl.limit))))
	if allowed {
		return true
	}

	h.Set("Retry-After", strconv.Itoa(max(rl.secondsUntil(tokens, 1), 1)))
	slog.Warn("rate limit exceeded", "key", key, "method", r.Method, "path", r.URL.Path, "limit", rl.limit)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func (rl *rateLimiter) bucket(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.sweepAt) {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.period {
				delete(rl.visitors, k)
			}
		}
		rl.sweepAt = now.Add(rl.period)
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.every, rl.limit)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// secondsUntil is how long the bucket needs to refill from tokens to want.
func (rl *rateLimiter) secondsUntil(tokens, want float64) int {
	missing := want - tokens
	if missing <= 0 {
		return 0
	}
	wait := time.Duration(missing * float64(rl.interval))
	return int((wait + time.Second - 1) / time.Second)
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.EmployeeID != "" {
		return "user:" + user.EmployeeID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

// isGuardedMutation matches stage submissions, employee provisioning and
// job triggers.
func isGuardedMutation(r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return false
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case strings.HasPrefix(path, "/jobs/"), strings.HasPrefix(path, "/employees/"):
		return true
	case strings.HasPrefix(path, "/appraisals/"):
		return strings.Contains(path, "/stages/")
	}
	return false
}
