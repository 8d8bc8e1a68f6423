package audit

import (
	"context"

	"github.com/eduline/chat-gateway/pkg/log"
)

// Audit actions for the chat gateway.
const (
	ActionConnect        = "chat.connect"
	ActionDisconnect     = "chat.disconnect"
	ActionJoinConv       = "chat.join_conversation"
	ActionJoinDenied     = "chat.join_denied"
	ActionSendMessage    = "chat.send_message"
	ActionSendRejected   = "chat.send_rejected"
	ActionMarkRead       = "chat.mark_read"
	ActionPresenceUpdate = "chat.presence_update"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID int64, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
