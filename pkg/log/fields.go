package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID = "user_id"

	// Realtime gateway
	FieldConnID         = "conn_id"
	FieldRoom           = "room"
	FieldEvent          = "event"
	FieldConversationID = "conversation_id"
	FieldMessageID      = "message_id"

	// Service
	FieldService   = "service"
	FieldComponent = "component"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
