// Package stream publishes delivery lifecycle events for downstream
// consumers (analytics, notification workers). The gateway only
// produces; nothing here is read back.
package stream

import "context"

// Event types carried on the lifecycle topic.
const (
	EventMessageSent      = "message_sent"
	EventMessageDelivered = "message_delivered"
	EventMessageRead      = "message_read"
	EventUserOnline       = "user_online"
	EventUserOffline      = "user_offline"
)

// DeliveryEvent is one lifecycle transition. Message fields are zero
// for presence events.
type DeliveryEvent struct {
	Type           string `json:"type"`
	MessageID      int64  `json:"message_id,omitempty"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	UserID         int64  `json:"user_id"`
	Status         string `json:"status,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// Producer publishes lifecycle events.
type Producer interface {
	Produce(ctx context.Context, ev DeliveryEvent) error
	Close() error
}

// Noop discards every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) Produce(context.Context, DeliveryEvent) error { return nil }
func (Noop) Close() error                                 { return nil }
