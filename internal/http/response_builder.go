package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"pocketwise/internal/core"
	applog "pocketwise/internal/log"
	"pocketwise/internal/services"
)

// ErrMissingUser is returned when a request carries no X-User-ID header.
var ErrMissingUser = errors.New("missing X-User-ID header")

// JSONResponseBuilder assembles a JSON response.
type JSONResponseBuilder struct {
	status  int
	headers map[string]string
	body    any
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{status: http.StatusOK, headers: make(map[string]string)}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.status = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A nil body writes only the status line.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	if b.body == nil {
		w.WriteHeader(b.status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.status)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse builds the {"error": ...} body for code.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingUser):
		return http.StatusUnauthorized, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, applog.ErrorTypeNotFound
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, applog.ErrorTypeDatabase
	case errors.Is(err, services.ErrNoExporter):
		return http.StatusNotImplemented, applog.ErrorTypeInternal
	default:
		return http.StatusInternalServerError, applog.ErrorTypeInternal
	}
}

// writeError logs err and sends its mapped status. Internal failures are
// reported to the caller without detail.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, errType := statusFor(err)
	ctx := r.Context()

	fields := applog.NewFields().WithOperation(op).WithError(err, errType).WithUser(r.Header.Get(HeaderUserID))
	logger := applog.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "Request failed", fields.ToSlice()...)
	} else {
		logger.WarnContext(ctx, "Request rejected", fields.ToSlice()...)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	ErrorResponse(status, msg).Write(w)
}
