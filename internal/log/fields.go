package log

import "time"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldChatID        = "chat_id"
	FieldUserID        = "user_id"
	FieldUpdateID      = "update_id"
	FieldCommand       = "command"
	FieldRole          = "role"
	FieldTransactionID = "transaction_id"
	FieldAmountCents   = "amount_cents"
	FieldEventType     = "event_type"
	FieldDeleted       = "deleted"
	FieldScope         = "scope"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentBot       = "bot"
	ComponentJournal   = "journal"
	ComponentRoles     = "roles"
	ComponentSettings  = "settings"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentLock      = "lock"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpAppend   = "append"
	OpUndo     = "undo"
	OpReset    = "reset"
	OpRenew    = "renew"
	OpGrant    = "grant"
	OpRevoke   = "revoke"
	OpUpdate   = "update"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
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

// WithChat adds the chat and acting user.
func (f LogFields) WithChat(chatID, userID int64) LogFields {
	f[FieldChatID] = chatID
	if userID != 0 {
		f[FieldUserID] = userID
	}
	return f
}

func (f LogFields) WithCommand(command, role string) LogFields {
	f[FieldCommand] = command
	f[FieldRole] = role
	return f
}

func (f LogFields) WithTransaction(id, amountCents int64) LogFields {
	f[FieldTransactionID] = id
	f[FieldAmountCents] = amountCents
	return f
}

// WithDuration adds both the millisecond and the human readable duration.
func (f LogFields) WithDuration(d time.Duration) LogFields {
	f[FieldDuration] = d.Milliseconds()
	f[FieldDurationHuman] = d.String()
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, success bool) LogFields {
	f[FieldStatusCode] = statusCode
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
