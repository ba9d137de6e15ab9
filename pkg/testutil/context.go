package testutil

import (
	"net/http"
	"time"

	"pulse/pkg/requestcontext"
)

// WithRequestID sets the request ID the metadata middleware would assign.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithRequestTime pins the request time the requesttime middleware would assign.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
