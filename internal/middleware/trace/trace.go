package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	applog "pocketwise/internal/log"
)

// HeaderRequestID carries the request id in and out of the service.
const HeaderRequestID = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.Logger
	total     int64
	lastMs    int64
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests  int64
	LastDurationMs int64
}

func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{extractIP: extractIP, logger: logger.WithComponent(applog.ComponentHTTP)}
}

// Middleware assigns a request id, attaches a request-scoped logger to the
// context and logs the completed request.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		logger := m.logger.With(applog.NewFields().WithRequestID(requestID).ToSlice()...)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = applog.WithLogger(ctx, logger)
		r = r.WithContext(ctx)

		atomic.AddInt64(&m.total, 1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		durationMs := time.Since(start).Milliseconds()
		atomic.StoreInt64(&m.lastMs, durationMs)

		level := slog.LevelInfo
		if rw.statusCode >= 400 && rw.statusCode < 500 {
			level = slog.LevelWarn
		} else if rw.statusCode >= 500 {
			level = slog.LevelError
		}

		fields := applog.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery).
			WithHTTPResponse(rw.statusCode, durationMs)
		fields[applog.FieldClientIP] = clientIP
		logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:  atomic.LoadInt64(&m.total),
		LastDurationMs: atomic.LoadInt64(&m.lastMs),
	}
}
