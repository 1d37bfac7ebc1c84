package statusapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RateLimiter is a token-bucket limiter keyed per client IP.
type RateLimiter struct {
	buckets map[string]*tokenBucket
	mutex   sync.RWMutex
	rate    int
	burst   int
	cleanup chan struct{}
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewRateLimiter returns a limiter allowing rate requests/second per IP,
// up to burst in a single window, and starts its background eviction of
// stale buckets.
func NewRateLimiter(rate, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   burst,
		cleanup: make(chan struct{}),
	}
	go rl.cleanupStaleEntries()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	bucket, exists := rl.buckets[ip]
	if !exists {
		bucket = &tokenBucket{tokens: rl.burst, lastRefill: time.Now()}
		rl.buckets[ip] = bucket
	}
	rl.mutex.Unlock()

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(bucket.lastRefill)
	tokensToAdd := int(elapsed.Seconds() * float64(rl.rate))
	if tokensToAdd > 0 {
		bucket.tokens += tokensToAdd
		if bucket.tokens > rl.burst {
			bucket.tokens = rl.burst
		}
		bucket.lastRefill = now
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) cleanupStaleEntries() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mutex.Lock()
			cutoff := time.Now().Add(-10 * time.Minute)
			for ip, bucket := range rl.buckets {
				bucket.mutex.Lock()
				if bucket.lastRefill.Before(cutoff) {
					delete(rl.buckets, ip)
				}
				bucket.mutex.Unlock()
			}
			rl.mutex.Unlock()
		case <-rl.cleanup:
			return
		}
	}
}

func (rl *RateLimiter) Close() { close(rl.cleanup) }

// SecurityMiddleware applies rate limiting, a request-size cap, security
// headers, and a basic bot/scanner user-agent block to every route.
type SecurityMiddleware struct {
	rateLimiter    *RateLimiter
	maxRequestSize int64
	metrics        *securityMetrics
}

type securityMetrics struct {
	rateLimitedRequests prometheus.Counter
	oversizedRequests   prometheus.Counter
	suspiciousRequests  prometheus.Counter
}

func NewSecurityMiddleware(rateLimit, burst int, maxRequestSize int64) *SecurityMiddleware {
	metrics := &securityMetrics{
		rateLimitedRequests: registerCounter(prometheus.CounterOpts{
			Name: "pons_rate_limited_requests_total",
			Help: "Total number of rate-limited status API requests",
		}),
		oversizedRequests: registerCounter(prometheus.CounterOpts{
			Name: "pons_oversized_requests_total",
			Help: "Total number of oversized status API requests rejected",
		}),
		suspiciousRequests: registerCounter(prometheus.CounterOpts{
			Name: "pons_suspicious_requests_total",
			Help: "Total number of suspicious status API requests detected",
		}),
	}

	return &SecurityMiddleware{
		rateLimiter:    NewRateLimiter(rateLimit, burst),
		maxRequestSize: maxRequestSize,
		metrics:        metrics,
	}
}

func (sm *SecurityMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sm.applySecurityHeaders(w)

		clientIP := sm.getClientIP(r)
		if !sm.rateLimiter.Allow(clientIP) {
			sm.metrics.rateLimitedRequests.Inc()
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		if r.ContentLength > sm.maxRequestSize {
			sm.metrics.oversizedRequests.Inc()
			http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
			return
		}

		if sm.isSuspiciousRequest(r) {
			sm.metrics.suspiciousRequests.Inc()
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (sm *SecurityMiddleware) applySecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")
	w.Header().Set("X-PONS-Node", "status-api")
}

func (sm *SecurityMiddleware) getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (sm *SecurityMiddleware) isSuspiciousRequest(r *http.Request) bool {
	suspiciousUAs := []string{"sqlmap", "nikto", "nmap", "masscan", "gobuster", "dirbuster", "<script"}
	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, s := range suspiciousUAs {
		if strings.Contains(ua, s) {
			return true
		}
	}
	url := strings.ToLower(r.URL.String())
	for _, pattern := range []string{"../", "..\\", "/etc/passwd", "/proc/", "<script", "onerror"} {
		if strings.Contains(url, pattern) {
			return true
		}
	}
	return false
}

func (sm *SecurityMiddleware) Close() {
	if sm.rateLimiter != nil {
		sm.rateLimiter.Close()
	}
}

// TimeoutMiddleware bounds handler execution time, guarding the status API
// against slow-client exhaustion the same way the rest of the request path
// bounds transmission time.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, "Request timeout")
	}
}
