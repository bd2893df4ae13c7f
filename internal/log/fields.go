package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldAccountID   = "account_id"
	FieldTransaction = "transaction_id"
	FieldCursor      = "cursor"
	FieldPage        = "page"
	FieldPages       = "pages"
	FieldAdded       = "added"
	FieldModified    = "modified"
	FieldRemoved     = "removed"
	FieldGranularity = "granularity"
	FieldGroupBy     = "group_by"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentSync      = "sync"
	ComponentStorage   = "storage"
	ComponentUpstream  = "upstream"
	ComponentWorker    = "worker"
	ComponentAMQP      = "amqp"
	ComponentCache     = "cache"
	ComponentReports   = "reports"
)

// Operations defines standard operation names
const (
	OpSync     = "sync"
	OpApply    = "apply"
	OpCommit   = "commit"
	OpHistory  = "history"
	OpSummary  = "summary"
	OpRegister = "register"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
