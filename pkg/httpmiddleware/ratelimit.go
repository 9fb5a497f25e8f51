package httpmiddleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Max is the burst size and the number of requests refilled per Window.
	Max int
	// Window is the refill period of Max tokens.
	Window time.Duration
	// KeyFunc extracts the limiter key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// RateLimit enforces a per-key token bucket. Idle buckets are evicted after
// two windows. Exceeding requests get 429 with a Retry-After header.
//
// A zero Max disables limiting.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	every := cfg.Window / time.Duration(cfg.Max)
	buckets := gocache.New(2*cfg.Window, 2*cfg.Window)
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)

			var l *rate.Limiter
			if v, ok := buckets.Get(key); ok {
				l = v.(*rate.Limiter)
			} else {
				l = rate.NewLimiter(rate.Every(every), cfg.Max)
				if err := buckets.Add(key, l, gocache.DefaultExpiration); err != nil {
					// Lost the race to another request with the same key.
					if v, ok := buckets.Get(key); ok {
						l = v.(*rate.Limiter)
					}
				}
			}
			// Touch to extend expiry while the client stays active.
			buckets.SetDefault(key, l)

			w.Header().Set("X-RateLimit-Limit", limit)
			if !l.Allow() {
				missing := 1 - l.Tokens()
				retry := time.Duration(missing * float64(every))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(math.Max(0, math.Floor(l.Tokens())))))
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For entry, X-Real-IP or the remote
// host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
