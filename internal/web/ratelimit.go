package web

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit caps a handler with a token bucket shared by all callers.
// Requests over the budget get a 429 without reaching the handler.
func RateLimit(rps rate.Limit, burst int, next http.HandlerFunc) http.HandlerFunc {
	limiter := rate.NewLimiter(rps, burst)
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			Error(w, TooManyRequests())
			return
		}
		next(w, r)
	}
}
