package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"careercoach/internal/errors"
	"careercoach/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const limiterCleanupInterval = 10 * time.Minute

// bucket is the token bucket of one client key
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LimiterManager keeps one token bucket per client key (IP or API key).
// Buckets unused for a cleanup interval are dropped.
type LimiterManager struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     rate.Limit
	burst    int
	rejected int64

	done      chan struct{}
	closeOnce sync.Once
	logger    *errors.Logger
}

// NewRateLimiter allows requestsPerMin per key with the given burst. When
// window is set, requestsPerMin is spread over it instead of a minute.
func NewRateLimiter(requestsPerMin int, window time.Duration, burstCapacity int, logger *errors.Logger) *LimiterManager {
	if window <= 0 {
		window = time.Minute
	}
	m := &LimiterManager{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(float64(requestsPerMin) / window.Seconds()),
		burst:   max(burstCapacity, 1),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go m.cleanupRoutine(limiterCleanupInterval)
	return m
}

// Allow takes a token from key's bucket, creating the bucket on first use
func (m *LimiterManager) Allow(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(m.rate, m.burst)}
		m.buckets[key] = b
	}
	b.lastSeen = time.Now()

	if b.limiter.Allow() {
		return true
	}
	m.rejected++
	return false
}

func (m *LimiterManager) GetStats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]any{
		"active_limiters":   len(m.buckets),
		"rate_per_second":   float64(m.rate),
		"rate_per_minute":   float64(m.rate) * 60.0,
		"burst_capacity":    m.burst,
		"rejected_requests": m.rejected,
	}
}

func (m *LimiterManager) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.evictIdle(now.Add(-interval))
		case <-m.done:
			return
		}
	}
}

// evictIdle drops buckets last used before cutoff
func (m *LimiterManager) evictIdle(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.buckets)
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
	if m.logger != nil && before != len(m.buckets) {
		m.logger.Debug("Dropped idle rate limit buckets",
			"dropped", before-len(m.buckets), "remaining", len(m.buckets))
	}
}

// Close stops the cleanup goroutine; it is safe to call more than once
func (m *LimiterManager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.RateLimiter = nil
	}
}

// rateLimitMiddleware rejects requests over the per-key budget with 429
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := getRateLimitKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if key == "" {
				next(w, r)
				return
			}

			if !s.RateLimiter.Allow(key) {
				s.Logger.Info("Rate limit exceeded",
					"key_type", strings.SplitN(key, ":", 2)[0],
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r))
				s.metrics.RecordBusinessMetric(r.Context(), observability.MetricRateLimitHit, false,
					attribute.String("endpoint", r.URL.Path))
				writeErrorResponse(w, "Rate limit exceeded", "Too many requests", http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}

func getRateLimitKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		if apiKey := requestAPIKey(r); apiKey != "" {
			return "api:" + apiKey
		}
	}

	if byIP {
		return "ip:" + getClientIP(r)
	}

	return ""
}

// requestAPIKey reads X-API-Key, falling back to an Authorization bearer token
func requestAPIKey(r *http.Request) string {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

// getClientIP prefers proxy headers, then the connection address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseFirstIP(ips string) string {
	for ip := range strings.SplitSeq(ips, ",") {
		ip = strings.TrimSpace(ip)
		if parsed := net.ParseIP(ip); parsed != nil {
			return ip
		}
	}
	return ""
}
