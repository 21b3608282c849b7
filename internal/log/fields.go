package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldMonth         = "month"
	FieldTransactionID = "transaction_id"
	FieldCount         = "count"
	FieldVersion       = "version"
	FieldImported      = "imported"
	FieldReplaced      = "replaced"
	FieldRejected      = "rejected"
	FieldSource        = "source"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentImporter = "importer"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentMirror   = "mirror"
	ComponentSheets   = "sheets"
	ComponentSecurity = "security"
	ComponentTrace    = "trace"
	ComponentBackend  = "backend"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeFormat     = "format_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeTooLarge   = "too_large_error"
	ErrorTypeTimeout    = "timeout_error"
	ErrorTypeInternal   = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithChange adds the fields describing one ledger mutation.
func (f LogFields) WithChange(op string, count int, month string, version uint64) LogFields {
	f[FieldOperation] = op
	f[FieldCount] = count
	f[FieldVersion] = version
	if month != "" {
		f[FieldMonth] = month
	}
	return f
}

// WithImport adds import report fields.
func (f LogFields) WithImport(source string, imported, replaced, rejected int) LogFields {
	f[FieldSource] = source
	f[FieldImported] = imported
	f[FieldReplaced] = replaced
	f[FieldRejected] = rejected
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
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
