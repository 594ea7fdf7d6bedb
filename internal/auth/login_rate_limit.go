package auth

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"notes-serverless/internal/observability"
	"notes-serverless/internal/respond"
)

const (
	defaultSigninPerMinute = 10
	defaultSigninBurst     = 5
	limiterIdleTTL         = 10 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginRateLimiter throttles signin attempts with a token bucket per client IP.
type LoginRateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	visitors  map[string]*visitor
	maxMemory int
	now       func() time.Time
	logger    *observability.Logger
}

func NewLoginRateLimiter(perMinute, burst int, logger *observability.Logger) *LoginRateLimiter {
	if perMinute <= 0 {
		perMinute = defaultSigninPerMinute
	}
	if burst <= 0 {
		burst = defaultSigninBurst
	}

	return &LoginRateLimiter{
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     burst,
		visitors:  make(map[string]*visitor),
		maxMemory: 5000,
		now:       time.Now,
		logger:    logger,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := observability.ClientIP(r)

		allowed, retryAfter := l.allow(ip, l.now())
		if !allowed {
			l.logger.Warn("signin_rate_limited", map[string]any{"ip": ip})
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			respond.Error(w, http.StatusTooManyRequests, "too many signin attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	reservation := v.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		if delay < time.Second {
			delay = time.Second
		}
		return false, delay
	}

	if len(l.visitors) > l.maxMemory {
		l.evict(now)
	}
	return true, 0
}

func (l *LoginRateLimiter) evict(now time.Time) {
	threshold := now.Add(-limiterIdleTTL)
	for key, v := range l.visitors {
		if v.lastSeen.Before(threshold) {
			delete(l.visitors, key)
		}
	}
}
