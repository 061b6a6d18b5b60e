// Package middleware feeds completed HTTP requests into the SLO registry.
package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/samijaber1/aegis-tracker/internal/registry"
)

// Recorder accepts observations. *registry.Registry satisfies it.
type Recorder interface {
	RecordHTTPObservation(registry.Observation)
}

// RouteFunc resolves the route reported for a completed request.
type RouteFunc func(*http.Request) string

type options struct {
	route RouteFunc
	now   func() time.Time
}

// Option configures Observe.
type Option func(*options)

// WithRouteFunc overrides route resolution.
func WithRouteFunc(fn RouteFunc) Option {
	return func(o *options) { o.route = fn }
}

// WithClock replaces time.Now for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Observe wraps next and records one observation per request after the
// handler returns.
func Observe(rec Recorder, next http.Handler, opts ...Option) http.Handler {
	o := options{route: PatternRoute, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := o.now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		finishedAt := o.now()
		duration := float64(finishedAt.Sub(startedAt)) / float64(time.Millisecond)
		rec.RecordHTTPObservation(registry.Observation{
			Route:      o.route(r),
			Method:     r.Method,
			StatusCode: wrapped.statusCode,
			DurationMs: &duration,
			Timestamp:  finishedAt,
		})
	})
}

// PatternRoute returns the ServeMux pattern that matched r without its
// method and host, falling back to the URL path.
func PatternRoute(r *http.Request) string {
	p := r.Pattern
	if p == "" {
		return r.URL.Path
	}
	if i := strings.IndexByte(p, ' '); i >= 0 {
		p = strings.TrimSpace(p[i+1:])
	}
	if i := strings.IndexByte(p, '/'); i > 0 {
		p = p[i:]
	}
	return p
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack passes connection upgrades through to the wrapped writer.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
