package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"distance-api-go/logcolors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// RequestID returns the correlation ID assigned to this request, or "" when
// the middleware is not installed (only in tests).
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithRequestID assigns a UUID to every inbound request, stores it in the
// context, and echoes it in the X-Request-ID header so callers can quote it
// when reporting problems.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// StatusRecorder captures the status written by a downstream handler. Used
// by the access log here and by the stats middleware in main.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

// NewStatusRecorder wraps w, defaulting the status to 200 for handlers that
// never call WriteHeader.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}

func (rec *StatusRecorder) WriteHeader(code int) {
	rec.Status = code
	rec.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs one line per request with method, path, status,
// duration and the correlation ID.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		log.Infof("%s %s%d%s %s %s (%v) id=%s",
			logcolors.LogRequest,
			getStatusColor(rec.Status), rec.Status, logcolors.Reset,
			r.Method, r.URL.Path, time.Since(start), RequestID(r.Context()))
	})
}

// getStatusColor picks the ANSI color for a status code in the access log.
func getStatusColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "\033[32m" // green
	case statusCode >= 300 && statusCode < 400:
		return "\033[36m" // cyan
	case statusCode >= 400 && statusCode < 500:
		return "\033[33m" // yellow
	default:
		return "\033[31m" // red
	}
}

// ClientIP extracts the client identifier for rate limiting: the first
// X-Forwarded-For hop when trustProxy is set (the header is only meaningful
// behind a proxy that overwrites it), otherwise the remote address without
// its port.
func ClientIP(r *http.Request, trustProxy bool) string {
	if fwd := r.Header.Get("X-Forwarded-For"); trustProxy && fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSONError emits the stable error body shape used by every rejection
// in the middleware chain: {error, message, requestId}.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":     code,
		"message":   message,
		"requestId": RequestID(r.Context()),
	})
}
