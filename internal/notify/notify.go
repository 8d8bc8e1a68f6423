// Package notify relays post and reply announcements from the classes
// service to the class rooms watching them.
package notify

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/eduline/chat-gateway/internal/domain"
	"github.com/eduline/chat-gateway/internal/router"
	"github.com/eduline/chat-gateway/pkg/log"
)

// Announcement subjects published by the classes service.
const (
	SubjectPostCreated  = "classes.posts.created"
	SubjectReplyCreated = "classes.replies.created"
)

// Broadcaster is the slice of the router the notifier needs.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, payload any) error
}

// PostNotification is the classes-service post record carried by an
// announcement. ParentID is set on replies.
type PostNotification struct {
	ID        int64  `json:"id"`
	ClassID   int64  `json:"class_id"`
	ParentID  int64  `json:"parent_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message,omitempty"`
	SenderID  int64  `json:"sender_id"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Notifier turns announcements into class-room broadcasts.
type Notifier struct {
	emitter Broadcaster
}

func New(emitter Broadcaster) *Notifier {
	return &Notifier{emitter: emitter}
}

// Subscribe registers the announcement subscriptions on conn. The
// returned subscriptions are owned by the caller.
func (n *Notifier) Subscribe(conn *nats.Conn) ([]*nats.Subscription, error) {
	posts, err := conn.Subscribe(SubjectPostCreated, func(msg *nats.Msg) {
		n.HandlePost(context.Background(), msg.Data)
	})
	if err != nil {
		return nil, err
	}

	replies, err := conn.Subscribe(SubjectReplyCreated, func(msg *nats.Msg) {
		n.HandleReply(context.Background(), msg.Data)
	})
	if err != nil {
		posts.Unsubscribe()
		return nil, err
	}

	return []*nats.Subscription{posts, replies}, nil
}

// HandlePost broadcasts a new-post announcement to its class room.
func (n *Notifier) HandlePost(ctx context.Context, data []byte) {
	n.relay(ctx, domain.EventPostCreated, data)
}

// HandleReply broadcasts a new-reply announcement to its class room.
func (n *Notifier) HandleReply(ctx context.Context, data []byte) {
	n.relay(ctx, domain.EventReplyCreated, data)
}

func (n *Notifier) relay(ctx context.Context, event string, data []byte) {
	l := log.Component("notify")

	var p PostNotification
	if err := json.Unmarshal(data, &p); err != nil {
		l.Warn().Err(err).Str(log.FieldEvent, event).Msg("malformed announcement")
		return
	}
	if p.ClassID <= 0 {
		l.Warn().Str(log.FieldEvent, event).Msg("announcement without class id")
		return
	}

	if err := n.emitter.Broadcast(ctx, router.ClassRoom(p.ClassID), event, p); err != nil {
		l.Error().Err(err).Int64("class_id", p.ClassID).Str(log.FieldEvent, event).Msg("announcement broadcast failed")
	}
}
