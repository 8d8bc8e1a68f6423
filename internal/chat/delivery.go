package chat

import (
	"context"
	"errors"
	"time"

	"github.com/eduline/chat-gateway/internal/chats"
	"github.com/eduline/chat-gateway/internal/domain"
	"github.com/eduline/chat-gateway/internal/router"
	"github.com/eduline/chat-gateway/internal/stream"
	"github.com/eduline/chat-gateway/pkg/log"
)

var (
	// ErrSenderMismatch means the payload's sender_id is not the
	// authenticated user behind the connection.
	ErrSenderMismatch = errors.New("chat: sender does not match authenticated user")

	// ErrInvalidMessage means a required field is missing or malformed.
	ErrInvalidMessage = errors.New("chat: invalid message")
)

// Emitter is the slice of the router the delivery flow needs.
type Emitter interface {
	Broadcast(ctx context.Context, room, event string, payload any) error
	BroadcastExcept(ctx context.Context, room, event string, payload any, exclude string) error
	BroadcastToUser(ctx context.Context, userID int64, event string, payload any) error
	ToConnection(connID, event string, payload any) bool
}

// Delivery drives a message through its lifecycle: persist as sending,
// mark sent, route to the recipient, and apply the delivered and read
// transitions as receipts come back.
type Delivery struct {
	chats  chats.Client
	guard  *Guard
	emit   Emitter
	stream stream.Producer
}

func NewDelivery(client chats.Client, guard *Guard, emit Emitter, producer stream.Producer) *Delivery {
	if producer == nil {
		producer = stream.Noop{}
	}
	return &Delivery{chats: client, guard: guard, emit: emit, stream: producer}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Send runs the full send flow for a message from connID. The caller
// translates returned errors into error frames; nothing is emitted to
// the issuing connection here except the final message:sent receipt.
func (d *Delivery) Send(ctx context.Context, connID string, userID int64, p domain.SendMessagePayload) (*chats.Message, error) {
	if p.SenderID != userID {
		return nil, ErrSenderMismatch
	}
	if p.Content == "" || p.ConversationID <= 0 {
		return nil, ErrInvalidMessage
	}

	conv, err := d.guard.Authorize(ctx, p.ConversationID, userID)
	if err != nil {
		return nil, err
	}

	messageType := p.MessageType
	if messageType == "" {
		messageType = domain.MessageTypeText
	}

	msg, err := d.chats.CreateMessage(ctx, chats.CreateMessageParams{
		SenderID:       p.SenderID,
		ConversationID: p.ConversationID,
		Content:        p.Content,
		MessageType:    messageType,
		Status:         domain.StatusSending,
		ClientID:       p.ClientID,
		ReplyToID:      p.ReplyToID,
	})
	if err != nil {
		return nil, err
	}

	// Persisted and about to be routed: the message is now sent.
	sent, err := d.chats.UpdateMessageStatus(ctx, msg.ID, domain.StatusSent, timestamp())
	if err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldMessageID, msg.ID).Msg("sent transition failed, routing as-is")
		sent = msg
	}
	sent.ClientID = p.ClientID

	recipient := conv.OtherParticipant(userID)

	// The conversation room covers open chat views; the recipient's user
	// room covers their other connections (notification badges etc).
	if err := d.emit.Broadcast(ctx, router.ConversationRoom(conv.ID), domain.EventMessageReceived, sent); err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldMessageID, sent.ID).Msg("conversation broadcast failed")
	}
	if err := d.emit.BroadcastToUser(ctx, recipient, domain.EventMessageReceived, sent); err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldMessageID, sent.ID).Msg("recipient broadcast failed")
	}

	d.emit.ToConnection(connID, domain.EventMessageSent, sent)

	d.produce(ctx, stream.DeliveryEvent{
		Type:           stream.EventMessageSent,
		MessageID:      sent.ID,
		ConversationID: conv.ID,
		UserID:         userID,
		Status:         string(sent.Status),
		Timestamp:      timestamp(),
	})

	return sent, nil
}

// MarkDelivered applies a delivery receipt from the recipient and
// notifies the original sender.
func (d *Delivery) MarkDelivered(ctx context.Context, userID int64, p domain.MessageDeliveredPayload) error {
	if p.MessageID <= 0 {
		return ErrInvalidMessage
	}

	at := p.DeliveredAt
	if at == "" {
		at = timestamp()
	}

	msg, err := d.chats.UpdateMessageStatus(ctx, p.MessageID, domain.StatusDelivered, at)
	if err != nil {
		return err
	}

	status := domain.MessageStatusPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Status:         domain.StatusDelivered,
		DeliveredAt:    at,
	}
	if err := d.emit.BroadcastToUser(ctx, msg.SenderID, domain.EventMessageStatus, status); err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldMessageID, msg.ID).Msg("delivered notification failed")
	}

	d.produce(ctx, stream.DeliveryEvent{
		Type:           stream.EventMessageDelivered,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         userID,
		Status:         string(domain.StatusDelivered),
		Timestamp:      at,
	})
	return nil
}

// MarkRead marks every unread message addressed to userID in the
// conversation as read and notifies both the conversation room and the
// other participant's user room. A zero count still notifies: the
// receipt is idempotent.
func (d *Delivery) MarkRead(ctx context.Context, userID int64, p domain.MessageReadPayload) error {
	if p.ConversationID <= 0 {
		return ErrInvalidMessage
	}

	conv, err := d.chats.FindConversation(ctx, p.ConversationID)
	if err != nil {
		return err
	}

	count, err := d.chats.MarkMessagesRead(ctx, p.ConversationID, userID)
	if err != nil {
		return err
	}

	at := p.ReadAt
	if at == "" {
		at = timestamp()
	}

	status := domain.MessageStatusPayload{
		ConversationID:    p.ConversationID,
		LastReadMessageID: p.LastReadMessageID,
		Status:            domain.StatusRead,
		ReadAt:            at,
		ReadBy:            userID,
		ReadCount:         count,
	}

	other := conv.OtherParticipant(userID)
	if err := d.emit.Broadcast(ctx, router.ConversationRoom(conv.ID), domain.EventMessageStatus, status); err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldConversationID, conv.ID).Msg("read notification failed")
	}
	if err := d.emit.BroadcastToUser(ctx, other, domain.EventMessageStatus, status); err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldConversationID, conv.ID).Msg("read notification failed")
	}

	d.produce(ctx, stream.DeliveryEvent{
		Type:           stream.EventMessageRead,
		ConversationID: conv.ID,
		UserID:         userID,
		Status:         string(domain.StatusRead),
		Timestamp:      at,
	})
	return nil
}

func (d *Delivery) produce(ctx context.Context, ev stream.DeliveryEvent) {
	if err := d.stream.Produce(ctx, ev); err != nil {
		l := log.L()
		l.Warn().Err(err).Str("event_type", ev.Type).Msg("stream produce failed")
	}
}
