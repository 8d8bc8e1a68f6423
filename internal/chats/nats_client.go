package chats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/eduline/chat-gateway/internal/domain"
	"github.com/eduline/chat-gateway/pkg/log"
)

// Request subjects served by the chat persistence service.
const (
	subjectCreateMessage    = "chats.messages.create"
	subjectFindConversation = "chats.conversations.find_one"
	subjectUpdateStatus     = "chats.messages.update_status"
	subjectMarkRead         = "chats.messages.mark_as_read"
)

// envelope is the reply format of the persistence service. Data holds
// the entity on success; Code carries a machine-readable error.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NATSClient implements Client over NATS request/reply.
type NATSClient struct {
	conn    *nats.Conn
	timeout time.Duration
}

func NewNATSClient(conn *nats.Conn, timeout time.Duration) *NATSClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NATSClient{conn: conn, timeout: timeout}
}

func (c *NATSClient) request(ctx context.Context, subject string, req any, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str("subject", subject).Msg("persistence request failed")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return fmt.Errorf("%w: malformed reply: %v", ErrUnavailable, err)
	}

	if !env.Success {
		if env.Code == "NOT_FOUND" {
			return ErrNotFound
		}
		return errors.New(envMessage(env))
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: malformed data: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func envMessage(env envelope) string {
	if env.Message != "" {
		return env.Message
	}
	return "persistence request rejected"
}

func (c *NATSClient) CreateMessage(ctx context.Context, params CreateMessageParams) (*Message, error) {
	var msg Message
	if err := c.request(ctx, subjectCreateMessage, params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *NATSClient) FindConversation(ctx context.Context, conversationID int64) (*Conversation, error) {
	req := struct {
		ID int64 `json:"id"`
	}{ID: conversationID}

	var conv Conversation
	if err := c.request(ctx, subjectFindConversation, req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *NATSClient) UpdateMessageStatus(ctx context.Context, messageID int64, status domain.MessageStatus, at string) (*Message, error) {
	req := struct {
		MessageID int64                `json:"message_id"`
		Status    domain.MessageStatus `json:"status"`
		Timestamp string               `json:"timestamp,omitempty"`
	}{MessageID: messageID, Status: status, Timestamp: at}

	var msg Message
	if err := c.request(ctx, subjectUpdateStatus, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *NATSClient) MarkMessagesRead(ctx context.Context, conversationID, userID int64) (int, error) {
	req := struct {
		ConversationID int64 `json:"conversation_id"`
		UserID         int64 `json:"user_id"`
	}{ConversationID: conversationID, UserID: userID}

	var result struct {
		Count int `json:"count"`
	}
	if err := c.request(ctx, subjectMarkRead, req, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}
