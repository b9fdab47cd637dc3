package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a per-client token bucket. Buckets refill at rate tokens per
// second up to burst; clients idle past the ttl are pruned.
type Limiter struct {
	mu        sync.Mutex
	rate      float64
	burst     float64
	cost      float64
	clients   map[string]*bucket
	ttl       time.Duration
	lastPrune time.Time
}

func NewLimiter(rate, burst, cost float64) *Limiter {
	return &Limiter{
		rate:      rate,
		burst:     burst,
		cost:      cost,
		clients:   make(map[string]*bucket),
		ttl:       10 * time.Minute,
		lastPrune: time.Now().UTC(),
	}
}

func (l *Limiter) Allow(r *http.Request) bool {
	ip := clientIP(r)
	now := time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)

	b, ok := l.clients[ip]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.clients[ip] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.rate
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.last = now
	}

	if b.tokens < l.cost {
		return false
	}
	b.tokens -= l.cost
	return true
}

func (l *Limiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < 2*time.Minute {
		return
	}
	l.lastPrune = now

	for ip, b := range l.clients {
		if now.Sub(b.last) > l.ttl {
			delete(l.clients, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For is spoofable and deliberately not trusted here.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// withMiddleware wraps the mux with baseline response headers, the rate
// limiter and, when an API key is configured, a constant-time key check on
// mutating requests.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")

		if s.limiter != nil && !s.limiter.Allow(r) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}

		if s.cfg.APIKey != "" && isMutating(r.Method) {
			if !constantTimeEqual(r.Header.Get("X-API-Key"), s.cfg.APIKey) {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func constantTimeEqual(a, b string) bool {
	ab := []byte(a)
	bb := []byte(b)
	if len(ab) != len(bb) {
		return false
	}
	return subtle.ConstantTimeCompare(ab, bb) == 1
}
