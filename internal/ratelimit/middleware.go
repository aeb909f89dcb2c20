package ratelimit

import (
	"net/http"
	"strconv"
)

// DefaultRetryAfterSeconds is sent in Retry-After when a request is throttled.
const DefaultRetryAfterSeconds = 1

// Middleware throttles requests per key and answers 429 Too Many Requests when
// a key runs out of tokens. Requests with an empty key pass through.
func Middleware(limiter *RateLimiter, keyOf func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyOf(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			l := limiter.GetLimiter(key)
			if !l.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(DefaultRetryAfterSeconds))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("Too Many Requests"))
				return
			}

			remaining := int(l.Tokens())
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			next.ServeHTTP(w, r)
		})
	}
}
