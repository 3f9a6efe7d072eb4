package log

import "github.com/shopspring/decimal"

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
	FieldUserID        = "user_id"
	FieldLoanID        = "loan_id"
	FieldLoanStatus    = "loan_status"
	FieldAmount        = "amount"
	FieldBalance       = "balance"
	FieldVersion       = "version"
	FieldEventType     = "event_type"
	FieldMessageID     = "message_id"
	FieldExportRef     = "export_ref"
	FieldAttempt       = "attempt"
	FieldCount         = "count"
	FieldDegradedLoans = "degraded_loans"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLoan      = "loan"
	ComponentDashboard = "dashboard"
	ComponentProfile   = "profile"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
)

// Operations defines standard operation names
const (
	OpCreate      = "create"
	OpRead        = "read"
	OpUpdate      = "update"
	OpList        = "list"
	OpPayment     = "apply_payment"
	OpDefault     = "mark_defaulted"
	OpRecalculate = "recalculate"
	OpExport      = "export"
	OpReconcile   = "reconcile"
	OpPublish     = "publish"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error text; a nil error adds nothing.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithLoan adds the identifying fields of a loan.
func (f LogFields) WithLoan(loanID, userID, status string, version int64) LogFields {
	f[FieldLoanID] = loanID
	f[FieldUserID] = userID
	f[FieldLoanStatus] = status
	f[FieldVersion] = version
	return f
}

// WithAmounts adds a monetary amount and the resulting balance.
func (f LogFields) WithAmounts(amount, balance decimal.Decimal) LogFields {
	f[FieldAmount] = amount.StringFixed(2)
	f[FieldBalance] = balance.StringFixed(2)
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
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
