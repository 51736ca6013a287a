package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kevin07696/flutterwave-gateway/pkg/encoding"
)

const (
	defaultMaxLimiters     = 10000
	defaultCleanupInterval = 5 * time.Minute
)

// ipLimiter tracks a rate limiter and its last access time
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies a token bucket per client IP, evicting idle entries
type RateLimiter struct {
	limiters        map[string]*ipLimiter
	mu              sync.Mutex
	rate            rate.Limit
	burst           int
	maxSize         int
	cleanupInterval time.Duration
	exempt          []string
	logger          *zap.Logger
	now             func() time.Time
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// Option configures a RateLimiter
type Option func(*RateLimiter)

// WithExemptPrefixes skips limiting for paths with any of the prefixes.
// Gateway webhooks and health checks come from a few fixed addresses.
func WithExemptPrefixes(prefixes ...string) Option {
	return func(rl *RateLimiter) {
		rl.exempt = append(rl.exempt, prefixes...)
	}
}

// WithLogger logs rejected requests and cleanup passes
func WithLogger(logger *zap.Logger) Option {
	return func(rl *RateLimiter) {
		rl.logger = logger
	}
}

// NewRateLimiter creates a limiter allowing requestsPerSecond per IP with the
// given burst, and starts its cleanup goroutine. Call Shutdown to stop it.
func NewRateLimiter(requestsPerSecond float64, burst int, opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		limiters:        make(map[string]*ipLimiter),
		rate:            rate.Limit(requestsPerSecond),
		burst:           burst,
		maxSize:         defaultMaxLimiters,
		cleanupInterval: defaultCleanupInterval,
		logger:          zap.NewNop(),
		now:             time.Now,
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}

	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes entries idle for longer than the cleanup interval
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.cleanupInterval)
	removed := 0
	for ip, limiter := range rl.limiters {
		if limiter.lastAccess.Before(cutoff) {
			delete(rl.limiters, ip)
			removed++
		}
	}

	if removed > 0 {
		rl.logger.Debug("Rate limiter cleanup",
			zap.Int("removed", removed),
			zap.Int("remaining", len(rl.limiters)),
		)
	}
}

// Shutdown stops the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Shutdown() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// getLimiter returns the limiter for ip, evicting the least recently used
// entry when the cache is full
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if limiter, ok := rl.limiters[ip]; ok {
		limiter.lastAccess = now
		return limiter.limiter
	}

	if len(rl.limiters) >= rl.maxSize {
		var oldestIP string
		var oldest time.Time
		for candidate, lim := range rl.limiters {
			if oldestIP == "" || lim.lastAccess.Before(oldest) {
				oldestIP = candidate
				oldest = lim.lastAccess
			}
		}
		delete(rl.limiters, oldestIP)
	}

	entry := &ipLimiter{
		limiter:    rate.NewLimiter(rl.rate, rl.burst),
		lastAccess: now,
	}
	rl.limiters[ip] = entry
	return entry.limiter
}

func (rl *RateLimiter) isExempt(path string) bool {
	for _, prefix := range rl.exempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Middleware returns HTTP middleware that answers 429 once a client's bucket is empty
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.isExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIP(r)
		if !rl.getLimiter(ip).Allow() {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path),
			)
			retryAfter := 1
			if rl.rate > 0 {
				retryAfter = int(math.Ceil(1 / float64(rl.rate)))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			_ = encoding.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"code":    "RATE_LIMITED",
				"message": "rate limit exceeded, please try again later",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of RemoteAddr, or RemoteAddr itself when it
// has no port
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
