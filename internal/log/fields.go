package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldUserID      = "user_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldMonth       = "month"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentTransactions = "transactions"
	ComponentSubscription = "subscriptions"
	ComponentBudget       = "budget"
	ComponentAnalytics    = "analytics"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentSheets       = "sheets"
	ComponentCache        = "cache"
	ComponentRateLimit    = "rate_limit"
	ComponentBackend      = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpEvaluate = "evaluate"
	OpExport   = "export"
	OpNotify   = "notify"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation  = "validation_error"
	ErrorTypeDatabase    = "database_error"
	ErrorTypeNotFound    = "not_found_error"
	ErrorTypeInternal    = "internal_error"
	ErrorTypeRateLimited = "rate_limited"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	if userID != "" {
		f[FieldUserID] = userID
	}
	return f
}

// WithError adds the error message and its category.
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
