package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cartridge/ars/internal/metrics"
)

// CorrelationHeader carries the request correlation ID.
const CorrelationHeader = "X-Correlation-ID"

// RequestLogger logs one line per request at a level chosen by status
// class. Lines carry the correlation ID, the matched route and, on
// policy routes, the policy ID.
func RequestLogger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return middleware.RequestLogger(logFormatter{base: logger})
}

type logFormatter struct {
	base zerolog.Logger
}

func (f logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{
		req: r,
		log: f.base.With().
			Str("correlation_id", ensureCorrelationID(r)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger(),
	}
}

type logEntry struct {
	req *http.Request
	log zerolog.Logger
}

// Write runs after the handler, so the route context is fully resolved.
func (e *logEntry) Write(status, size int, _ http.Header, elapsed time.Duration, _ interface{}) {
	ev := e.log.WithLevel(levelFor(status)).
		Str("route", routePattern(e.req)).
		Int("status", status).
		Int("bytes", size).
		Dur("elapsed", elapsed)
	if id := chi.URLParam(e.req, "policyID"); id != "" {
		ev = ev.Str("policy_id", id)
	}
	ev.Msg("request served")
}

func (e *logEntry) Panic(v interface{}, stack []byte) {
	e.log.Error().
		Str("route", routePattern(e.req)).
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("handler panicked")
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// ensureCorrelationID returns the request's correlation ID, minting one
// and storing it on the request headers when absent.
func ensureCorrelationID(r *http.Request) string {
	id := r.Header.Get(CorrelationHeader)
	if id == "" {
		id = uuid.NewString()
		r.Header.Set(CorrelationHeader, id)
	}
	return id
}

// routePattern falls back to the raw path for unmatched requests.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// CorrelationID echoes the request's correlation ID on the response.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(CorrelationHeader, ensureCorrelationID(r))
		next.ServeHTTP(w, r)
	})
}

// Metrics records every request with the collector, labelled by the
// matched route pattern rather than the raw path.
func Metrics(collector *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			collector.APIRequest(r.Method, routePattern(r), status, time.Since(start))
		})
	}
}
