// Package gateway wires the WebSocket transport to the chat semantics:
// it authenticates handshakes, tracks connections, dispatches inbound
// event frames, and owns every error frame sent back to a client.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eduline/chat-gateway/internal/audit"
	"github.com/eduline/chat-gateway/internal/chat"
	"github.com/eduline/chat-gateway/internal/chats"
	"github.com/eduline/chat-gateway/internal/domain"
	"github.com/eduline/chat-gateway/internal/hub"
	"github.com/eduline/chat-gateway/internal/presence"
	"github.com/eduline/chat-gateway/internal/registry"
	"github.com/eduline/chat-gateway/internal/router"
	"github.com/eduline/chat-gateway/internal/stream"
	"github.com/eduline/chat-gateway/pkg/log"
)

type Gateway struct {
	registry *registry.Registry
	router   *router.Router
	presence *presence.Tracker
	guard    *chat.Guard
	delivery *chat.Delivery
	typing   *chat.Typing
	stream   stream.Producer
}

func New(
	reg *registry.Registry,
	rt *router.Router,
	tracker *presence.Tracker,
	guard *chat.Guard,
	delivery *chat.Delivery,
	typing *chat.Typing,
	producer stream.Producer,
) *Gateway {
	if producer == nil {
		producer = stream.Noop{}
	}
	return &Gateway{
		registry: reg,
		router:   rt,
		presence: tracker,
		guard:    guard,
		delivery: delivery,
		typing:   typing,
		stream:   producer,
	}
}

// HandleConnect runs after a successful handshake. The connection is
// bound to its user, joined to the user's personal room, and presence
// flips to online. Returns an error only when the registration itself
// is rejected.
func (g *Gateway) HandleConnect(ctx context.Context, c *hub.Client) error {
	if err := g.registry.Register(c.ID, c.UserID); err != nil {
		return err
	}

	g.router.Join(c, router.UserRoom(c.UserID))
	g.presence.SetOnline(ctx, c.UserID)

	// Direct send: hub registration is asynchronous and the ack must
	// not depend on it having landed.
	c.SendFrame(domain.EventReconnected, domain.ReconnectedPayload{
		UserID:    c.UserID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	g.produce(ctx, stream.DeliveryEvent{
		Type:      stream.EventUserOnline,
		UserID:    c.UserID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	audit.LogWithDetail(ctx, audit.ActionConnect, c.UserID, c.ID, "client connected")
	return nil
}

// HandleDisconnect runs when the read pump exits, for any reason. The
// user goes offline only when this was their last connection.
func (g *Gateway) HandleDisconnect(c *hub.Client) {
	ctx := context.Background()

	g.typing.CleanupConnection(ctx, c.ID)

	userID, remaining, ok := g.registry.Unregister(c.ID)
	if !ok {
		return
	}

	if remaining == 0 {
		g.presence.SetOffline(ctx, userID)
		g.produce(ctx, stream.DeliveryEvent{
			Type:      stream.EventUserOffline,
			UserID:    userID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}

	audit.LogWithDetail(ctx, audit.ActionDisconnect, userID, c.ID, "client disconnected")
}

// HandleEvent parses and dispatches one inbound frame. All error frames
// back to the issuing connection originate here.
func (g *Gateway) HandleEvent(ctx context.Context, c *hub.Client, raw []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "malformed frame", nil)
		return
	}

	switch env.Event {
	case domain.EventSendMessage:
		g.handleSendMessage(ctx, c, env.Data)
	case domain.EventJoinConversation:
		g.handleJoinConversation(ctx, c, env.Data)
	case domain.EventLeaveConversation:
		g.handleLeaveConversation(c, env.Data)
	case domain.EventTypingStart:
		g.handleTyping(ctx, c, env.Data, true)
	case domain.EventTypingStop:
		g.handleTyping(ctx, c, env.Data, false)
	case domain.EventMessageDelivered:
		g.handleMessageDelivered(ctx, c, env.Data)
	case domain.EventMessageRead:
		g.handleMessageRead(ctx, c, env.Data)
	case domain.EventPresenceUpdate:
		g.handlePresenceUpdate(ctx, c, env.Data)
	case domain.EventPresenceRequest:
		g.handlePresenceRequest(ctx, c, env.Data)
	case domain.EventJoinClass:
		g.handleJoinClass(ctx, c, env.Data)
	case domain.EventLeaveClass:
		g.handleLeaveClass(c, env.Data)
	default:
		l := log.L()
		l.Debug().Str(log.FieldConnID, c.ID).Str(log.FieldEvent, env.Event).Msg("unknown event")
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "unknown event", map[string]any{"event": env.Event})
	}
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *hub.Client, data json.RawMessage) {
	var p domain.SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(c, domain.EventMessageError, domain.ErrCodeValidation, "malformed payload", nil)
		return
	}

	details := map[string]any{}
	if p.ClientID != "" {
		details["client_id"] = p.ClientID
	}

	_, err := g.delivery.Send(ctx, c.ID, c.UserID, p)
	if err == nil {
		audit.Log(ctx, audit.ActionSendMessage, c.UserID, "message sent")
		return
	}

	audit.LogWithDetail(ctx, audit.ActionSendRejected, c.UserID, err.Error(), "message rejected")

	switch {
	case errors.Is(err, chat.ErrSenderMismatch):
		g.sendError(c, domain.EventMessageError, domain.ErrCodeUnauthorized, "sender does not match authenticated user", details)
	case errors.Is(err, chat.ErrNotParticipant):
		g.sendError(c, domain.EventMessageError, domain.ErrCodeUnauthorized, "not a conversation participant", details)
	case errors.Is(err, chat.ErrInvalidMessage):
		g.sendError(c, domain.EventMessageError, domain.ErrCodeValidation, "invalid message payload", details)
	case errors.Is(err, chats.ErrNotFound):
		g.sendError(c, domain.EventMessageError, domain.ErrCodeNotFound, "conversation not found", details)
	case errors.Is(err, chats.ErrUnavailable):
		g.sendError(c, domain.EventMessageError, domain.ErrCodeUpstreamUnavailable, "chat service unavailable", details)
	default:
		g.sendError(c, domain.EventMessageError, domain.ErrCodeSendFailed, "failed to send message", details)
	}
}

func (g *Gateway) handleJoinConversation(ctx context.Context, c *hub.Client, data json.RawMessage) {
	var p domain.JoinConversationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID <= 0 {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "malformed payload", nil)
		return
	}

	info, err := g.guard.AuthorizeJoin(ctx, p.ConversationID, c.UserID)
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionJoinDenied, c.UserID, err.Error(), "conversation join denied")
		switch {
		case errors.Is(err, chat.ErrNotParticipant):
			g.sendError(c, domain.EventError, domain.ErrCodeUnauthorized, "not a conversation participant", nil)
		case errors.Is(err, chats.ErrNotFound):
			g.sendError(c, domain.EventError, domain.ErrCodeNotFound, "conversation not found", nil)
		case errors.Is(err, chats.ErrUnavailable):
			g.sendError(c, domain.EventError, domain.ErrCodeUpstreamUnavailable, "chat service unavailable", nil)
		default:
			g.sendError(c, domain.EventError, domain.ErrCodeSendFailed, "failed to join conversation", nil)
		}
		return
	}

	g.router.Join(c, router.ConversationRoom(p.ConversationID))
	audit.Log(ctx, audit.ActionJoinConv, c.UserID, "conversation joined")

	c.SendFrame(domain.EventConversationJoined, domain.ConversationJoinedPayload{
		ConversationID:     p.ConversationID,
		Success:            true,
		Participants:       info.Participants,
		OnlineParticipants: info.Online,
	})
}

func (g *Gateway) handleLeaveConversation(c *hub.Client, data json.RawMessage) {
	var p domain.LeaveConversationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID <= 0 {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "malformed payload", nil)
		return
	}
	g.router.Leave(c, router.ConversationRoom(p.ConversationID))
}

func (g *Gateway) handleTyping(ctx context.Context, c *hub.Client, data json.RawMessage, start bool) {
	var p domain.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID <= 0 {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "malformed payload", nil)
		return
	}

	// Typing speaks for the connection's own user only.
	if p.UserID != 0 && p.UserID != c.UserID {
		g.sendError(c, domain.EventError, domain.ErrCodeUnauthorized, "cannot send typing for another user", nil)
		return
	}

	if start {
		g.typing.Start(ctx, c.ID, p.ConversationID, c.UserID)
	} else {
		g.typing.Stop(ctx, c.ID, p.ConversationID, c.UserID)
	}
}

func (g *Gateway) handleMessageDelivered(ctx context.Context, c *hub.Client, data json.RawMessage) {
	var p domain.MessageDeliveredPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "malformed payload", nil)
		return
	}
	if p.MessageID <= 0 {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "message_id is required", nil)
		return
	}

	if err := g.delivery.MarkDelivered(ctx, c.UserID, p); err != nil {
		g.sendDeliveryError(c, err)
	}
}

func (g *Gateway) handleMessageRead(ctx context.Context, c *hub.Client, data json.RawMessage) {
	var p domain.MessageReadPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID <= 0 {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "malformed payload", nil)
		return
	}

	if err := g.delivery.MarkRead(ctx, c.UserID, p); err != nil {
		g.sendDeliveryError(c, err)
		return
	}
	audit.Log(ctx, audit.ActionMarkRead, c.UserID, "messages marked read")
}

func (g *Gateway) handlePresenceUpdate(ctx context.Context, c *hub.Client, data json.RawMessage) {
	var p domain.PresenceUpdatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "malformed payload", nil)
		return
	}
	if !domain.ValidPresenceStatus(p.Status) {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "unknown presence status", nil)
		return
	}
	if p.UserID != 0 && p.UserID != c.UserID {
		g.sendError(c, domain.EventError, domain.ErrCodeUnauthorized, "cannot update another user's presence", nil)
		return
	}

	g.presence.UpdateStatus(ctx, c.UserID, p.Status)
	audit.LogWithDetail(ctx, audit.ActionPresenceUpdate, c.UserID, string(p.Status), "presence updated")
}

func (g *Gateway) handlePresenceRequest(ctx context.Context, c *hub.Client, data json.RawMessage) {
	var p domain.PresenceRequestPayload
	if err := json.Unmarshal(data, &p); err != nil || len(p.UserIDs) == 0 {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "user_ids is required", nil)
		return
	}

	records, err := g.presence.GetMultiple(ctx, p.UserIDs)
	if err != nil {
		g.sendError(c, domain.EventError, domain.ErrCodeUpstreamUnavailable, "presence lookup failed", nil)
		return
	}

	c.SendFrame(domain.EventPresenceList, records)
}

func (g *Gateway) handleJoinClass(ctx context.Context, c *hub.Client, data json.RawMessage) {
	var p domain.JoinClassPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ClassID <= 0 {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "malformed payload", nil)
		return
	}
	if p.UserID != 0 && p.UserID != c.UserID {
		g.sendError(c, domain.EventError, domain.ErrCodeUnauthorized, "cannot join a class as another user", nil)
		return
	}

	room := router.ClassRoom(p.ClassID)
	g.router.Join(c, room)

	c.SendFrame(domain.EventClassJoined, domain.ClassJoinedPayload{
		ClassID:      p.ClassID,
		Success:      true,
		MembersCount: g.router.RoomSize(room),
	})
}

func (g *Gateway) handleLeaveClass(c *hub.Client, data json.RawMessage) {
	var p domain.LeaveClassPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ClassID <= 0 {
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "malformed payload", nil)
		return
	}
	g.router.Leave(c, router.ClassRoom(p.ClassID))
}

func (g *Gateway) sendDeliveryError(c *hub.Client, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidMessage):
		g.sendError(c, domain.EventError, domain.ErrCodeValidation, "invalid payload", nil)
	case errors.Is(err, chats.ErrNotFound):
		g.sendError(c, domain.EventError, domain.ErrCodeNotFound, "not found", nil)
	case errors.Is(err, chats.ErrUnavailable):
		g.sendError(c, domain.EventError, domain.ErrCodeUpstreamUnavailable, "chat service unavailable", nil)
	default:
		g.sendError(c, domain.EventError, domain.ErrCodeSendFailed, "operation failed", nil)
	}
}

func (g *Gateway) sendError(c *hub.Client, event, code, message string, details map[string]any) {
	payload := domain.ErrorPayload{Message: message, Code: code, Details: details}
	c.SendFrame(event, payload)
}

func (g *Gateway) produce(ctx context.Context, ev stream.DeliveryEvent) {
	if err := g.stream.Produce(ctx, ev); err != nil {
		l := log.L()
		l.Warn().Err(err).Str("event_type", ev.Type).Msg("stream produce failed")
	}
}
