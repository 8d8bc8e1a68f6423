// Package router names rooms and fans event frames out to them, both
// through the local hub and across instances.
package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eduline/chat-gateway/internal/domain"
	"github.com/eduline/chat-gateway/internal/fanout"
	"github.com/eduline/chat-gateway/internal/hub"
	"github.com/eduline/chat-gateway/pkg/log"
)

// Room name helpers. These are the only places room names are built.

func UserRoom(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

func ConversationRoom(conversationID int64) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

func ClassRoom(classID int64) string {
	return fmt.Sprintf("class:%d", classID)
}

// Router sits between the event handlers and the transports. A
// broadcast goes to the local hub and, when a fanout adapter is wired,
// to every other instance as well.
type Router struct {
	hub    *hub.Hub
	fanout fanout.Adapter
}

func New(h *hub.Hub, f fanout.Adapter) *Router {
	if f == nil {
		f = fanout.Noop{}
	}
	return &Router{hub: h, fanout: f}
}

func (r *Router) Join(c *hub.Client, room string) {
	r.hub.Join(c, room)
}

func (r *Router) Leave(c *hub.Client, room string) {
	r.hub.Leave(c, room)
}

func (r *Router) RoomSize(room string) int {
	return r.hub.RoomSize(room)
}

// Broadcast delivers an event frame to every member of a room, on this
// instance and on the others.
func (r *Router) Broadcast(ctx context.Context, room, event string, payload any) error {
	return r.broadcast(ctx, room, event, payload, "")
}

// BroadcastExcept delivers to a room skipping one local connection.
// The exclusion only matters locally: the excluded connection cannot
// live on another instance.
func (r *Router) BroadcastExcept(ctx context.Context, room, event string, payload any, exclude string) error {
	return r.broadcast(ctx, room, event, payload, exclude)
}

// BroadcastToUser delivers to every connection a user holds, wherever
// those connections live.
func (r *Router) BroadcastToUser(ctx context.Context, userID int64, event string, payload any) error {
	return r.broadcast(ctx, UserRoom(userID), event, payload, "")
}

// BroadcastAll delivers to every connection on every instance.
func (r *Router) BroadcastAll(ctx context.Context, event string, payload any) error {
	return r.broadcast(ctx, "", event, payload, "")
}

// ToConnection delivers a frame to a single local connection.
func (r *Router) ToConnection(connID, event string, payload any) bool {
	return r.hub.SendTo(connID, event, payload)
}

func (r *Router) broadcast(ctx context.Context, room, event string, payload any, exclude string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	frame, err := json.Marshal(domain.Frame{Event: event, Data: json.RawMessage(raw)})
	if err != nil {
		return err
	}
	r.hub.BroadcastRaw(room, frame, exclude)

	env := &fanout.Envelope{Room: room, Event: event, Data: raw, Exclude: exclude}
	if err := r.fanout.Publish(ctx, env); err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldRoom, room).Str(log.FieldEvent, event).Msg("fanout publish failed")
		return err
	}
	return nil
}

// HandleRemote replays an envelope from another instance into the
// local hub. The remote exclusion is ignored here: the excluded
// connection belongs to the origin instance.
func (r *Router) HandleRemote(env *fanout.Envelope) {
	frame, err := json.Marshal(domain.Frame{Event: env.Event, Data: env.Data})
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldEvent, env.Event).Msg("remote frame marshal failed")
		return
	}
	r.hub.BroadcastRaw(env.Room, frame, "")
}
