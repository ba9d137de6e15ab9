// Package requesttime pins one timestamp per request. Results computed while
// serving the request carry it as their generated_at.
package requesttime

import (
	"net/http"
	"time"

	"pulse/pkg/requestcontext"
)

// Clock returns the current time.
type Clock func() time.Time

// Middleware stamps each request with the wall clock.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock stamps each request with clock(). A nil clock uses time.Now.
func WithClock(clock Clock) func(http.Handler) http.Handler {
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
