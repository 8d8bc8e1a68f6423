// Package chats talks to the chat persistence service. The gateway
// holds no database: every message and conversation read or write goes
// through this boundary.
package chats

import (
	"context"
	"errors"

	"github.com/eduline/chat-gateway/internal/domain"
)

var (
	// ErrNotFound means the persistence service looked and the entity
	// does not exist.
	ErrNotFound = errors.New("chats: not found")

	// ErrUnavailable means the persistence service could not be reached
	// or did not answer in time.
	ErrUnavailable = errors.New("chats: service unavailable")
)

// Message is the persisted message record as the service returns it.
type Message struct {
	ID             int64                `json:"id"`
	SenderID       int64                `json:"sender_id"`
	ConversationID int64                `json:"conversation_id"`
	Content        string               `json:"content"`
	MessageType    string               `json:"message_type"`
	Timestamp      string               `json:"timestamp"`
	Status         domain.MessageStatus `json:"status"`
	ClientID       string               `json:"client_id,omitempty"`
	ReplyToID      string               `json:"reply_to_id,omitempty"`
}

// Conversation is a two-party thread.
type Conversation struct {
	ID         int64 `json:"id"`
	SenderID   int64 `json:"sender_id"`
	ReceiverID int64 `json:"receiver_id"`
}

// HasParticipant reports whether userID is one of the two parties.
func (c *Conversation) HasParticipant(userID int64) bool {
	return c.SenderID == userID || c.ReceiverID == userID
}

// OtherParticipant returns the party that is not userID. When userID is
// the stored sender the receiver comes back, otherwise the sender does.
func (c *Conversation) OtherParticipant(userID int64) int64 {
	if c.SenderID == userID {
		return c.ReceiverID
	}
	return c.SenderID
}

// Participants returns both parties.
func (c *Conversation) Participants() []int64 {
	return []int64{c.SenderID, c.ReceiverID}
}

// CreateMessageParams are the fields of a new message.
type CreateMessageParams struct {
	SenderID       int64                `json:"sender_id"`
	ConversationID int64                `json:"conversation_id"`
	Content        string               `json:"content"`
	MessageType    string               `json:"message_type"`
	Status         domain.MessageStatus `json:"status"`
	ClientID       string               `json:"client_id,omitempty"`
	ReplyToID      string               `json:"reply_to_id,omitempty"`
}

// Client is the persistence boundary. Implementations return
// ErrNotFound and ErrUnavailable as sentinel errors; anything else is
// an internal failure.
type Client interface {
	// CreateMessage persists a new message and returns the stored record.
	CreateMessage(ctx context.Context, params CreateMessageParams) (*Message, error)

	// FindConversation loads a conversation by id.
	FindConversation(ctx context.Context, conversationID int64) (*Conversation, error)

	// UpdateMessageStatus moves a message's delivery status and returns
	// the updated record.
	UpdateMessageStatus(ctx context.Context, messageID int64, status domain.MessageStatus, at string) (*Message, error)

	// MarkMessagesRead marks every unread message addressed to userID in
	// the conversation as read and returns how many changed.
	MarkMessagesRead(ctx context.Context, conversationID, userID int64) (int, error)
}
