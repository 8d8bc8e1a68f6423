// Package chat implements conversation semantics on top of the hub and
// the persistence boundary: membership checks, the message delivery
// state machine, and typing indicators.
package chat

import (
	"context"
	"errors"

	"github.com/eduline/chat-gateway/internal/chats"
	"github.com/eduline/chat-gateway/internal/presence"
	"github.com/eduline/chat-gateway/pkg/log"
)

// ErrNotParticipant means the user is not a party to the conversation.
var ErrNotParticipant = errors.New("chat: user is not a conversation participant")

// Guard answers "may this user touch this conversation". Every
// conversation-scoped event passes through it before side effects.
type Guard struct {
	chats    chats.Client
	presence *presence.Tracker
}

func NewGuard(client chats.Client, tracker *presence.Tracker) *Guard {
	return &Guard{chats: client, presence: tracker}
}

// Authorize loads the conversation and checks that userID is a
// participant. Returns chats.ErrNotFound when the conversation does
// not exist and ErrNotParticipant when the user is not a party.
func (g *Guard) Authorize(ctx context.Context, conversationID, userID int64) (*chats.Conversation, error) {
	conv, err := g.chats.FindConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// JoinInfo is what a successful conversation join reports back.
type JoinInfo struct {
	Conversation *chats.Conversation
	Participants []int64
	Online       []int64
}

// AuthorizeJoin authorizes and additionally resolves which participants
// are currently online. A presence store failure degrades to an empty
// online list rather than denying the join.
func (g *Guard) AuthorizeJoin(ctx context.Context, conversationID, userID int64) (*JoinInfo, error) {
	conv, err := g.Authorize(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	participants := conv.Participants()
	online, err := g.presence.Online(ctx, participants)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Int64(log.FieldConversationID, conversationID).Msg("online lookup failed, reporting none")
		online = []int64{}
	}

	return &JoinInfo{Conversation: conv, Participants: participants, Online: online}, nil
}
