package domain

import "encoding/json"

// Client -> server events.
const (
	EventSendMessage       = "message:send"
	EventJoinConversation  = "conversation:join"
	EventLeaveConversation = "conversation:leave"
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"
	EventMessageDelivered  = "message:delivered"
	EventMessageRead       = "message:read"
	EventPresenceUpdate    = "presence:update"
	EventPresenceRequest   = "presence:request"
	EventJoinClass         = "class:join"
	EventLeaveClass        = "class:leave"
)

// Server -> client events.
const (
	EventMessageReceived    = "message:received"
	EventMessageSent        = "message:sent"
	EventMessageStatus      = "message:status"
	EventMessageError       = "message:error"
	EventConversationJoined = "conversation:joined"
	EventClassJoined        = "class:joined"
	EventUserTyping         = "user:typing"
	EventUserOnline         = "user:online"
	EventUserOffline        = "user:offline"
	EventUserPresence       = "user:presence"
	EventPresenceList       = "presence:list"
	EventPostCreated        = "post:created"
	EventReplyCreated       = "reply:created"
	EventError              = "error"
	EventReconnected        = "reconnected"
)

// Envelope is the inbound wire frame: an event name plus its raw payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is the outbound wire frame.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client -> server payloads.

type SendMessagePayload struct {
	SenderID       int64  `json:"sender_id"`
	ConversationID int64  `json:"conversation_id"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	ReplyToID      string `json:"reply_to_id,omitempty"`
}

type JoinConversationPayload struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
}

type LeaveConversationPayload struct {
	ConversationID int64 `json:"conversation_id"`
}

type TypingPayload struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
}

type MessageDeliveredPayload struct {
	MessageID   int64  `json:"message_id"`
	UserID      int64  `json:"user_id"`
	DeliveredAt string `json:"delivered_at"`
}

type MessageReadPayload struct {
	ConversationID    int64  `json:"conversation_id"`
	UserID            int64  `json:"user_id"`
	LastReadMessageID int64  `json:"last_read_message_id"`
	ReadAt            string `json:"read_at"`
}

type PresenceUpdatePayload struct {
	UserID   int64          `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen string         `json:"last_seen,omitempty"`
}

type PresenceRequestPayload struct {
	UserIDs []int64 `json:"user_ids"`
}

type JoinClassPayload struct {
	ClassID int64 `json:"class_id"`
	UserID  int64 `json:"user_id"`
}

type LeaveClassPayload struct {
	ClassID int64 `json:"class_id"`
}

// Server -> client payloads.

type ConversationJoinedPayload struct {
	ConversationID     int64   `json:"conversation_id"`
	Success            bool    `json:"success"`
	Participants       []int64 `json:"participants"`
	OnlineParticipants []int64 `json:"online_participants"`
}

type ClassJoinedPayload struct {
	ClassID      int64 `json:"class_id"`
	Success      bool  `json:"success"`
	MembersCount int   `json:"members_count"`
}

type TypingBroadcast struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
	IsTyping       bool  `json:"is_typing"`
}

// MessageStatusPayload reports a delivery state transition. Only the
// fields relevant to the transition are set.
type MessageStatusPayload struct {
	MessageID         int64         `json:"message_id,omitempty"`
	ConversationID    int64         `json:"conversation_id,omitempty"`
	LastReadMessageID int64         `json:"last_read_message_id,omitempty"`
	Status            MessageStatus `json:"status"`
	DeliveredAt       string        `json:"delivered_at,omitempty"`
	ReadAt            string        `json:"read_at,omitempty"`
	ReadBy            int64         `json:"read_by,omitempty"`
	ReadCount         int           `json:"read_count,omitempty"`
}

type PresenceBroadcast struct {
	UserID   int64          `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen string         `json:"last_seen,omitempty"`
}

type ReconnectedPayload struct {
	UserID    int64  `json:"user_id"`
	Timestamp string `json:"timestamp"`
}
