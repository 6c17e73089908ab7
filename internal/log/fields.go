package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUsername   = "username"
	FieldRole       = "role"
	FieldRecordDate = "record_date"
	FieldOrderID    = "order_id"
	FieldEventKind  = "event_kind"
	FieldAmount     = "amount_paise"
	FieldReason     = "reason"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentAPI     = "api_client"
	ComponentView    = "view"
	ComponentSession = "session"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentAuth    = "auth"
)

// Operations defines standard operation names
const (
	OpRefresh  = "refresh"
	OpList     = "list"
	OpFetch    = "fetch"
	OpDelete   = "delete"
	OpUpdate   = "update"
	OpLogin    = "login"
	OpLogout   = "logout"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpMirror   = "mirror"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
