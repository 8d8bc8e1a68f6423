package chat

import (
	"context"
	"sync"

	"github.com/eduline/chat-gateway/internal/chats"
	"github.com/eduline/chat-gateway/internal/domain"
)

// fakeChats is an in-memory stand-in for the persistence service.
type fakeChats struct {
	mu            sync.Mutex
	nextID        int64
	messages      map[int64]*chats.Message
	conversations map[int64]*chats.Conversation
	unreadCounts  map[int64]int // conversationID -> unread for next MarkMessagesRead
	failCreate    error
	failFind      error
	failUpdate    error
}

func newFakeChats() *fakeChats {
	return &fakeChats{
		nextID:        1,
		messages:      make(map[int64]*chats.Message),
		conversations: make(map[int64]*chats.Conversation),
		unreadCounts:  make(map[int64]int),
	}
}

func (f *fakeChats) addConversation(id, senderID, receiverID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[id] = &chats.Conversation{ID: id, SenderID: senderID, ReceiverID: receiverID}
}

func (f *fakeChats) CreateMessage(_ context.Context, params chats.CreateMessageParams) (*chats.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return nil, f.failCreate
	}

	msg := &chats.Message{
		ID:             f.nextID,
		SenderID:       params.SenderID,
		ConversationID: params.ConversationID,
		Content:        params.Content,
		MessageType:    params.MessageType,
		Status:         params.Status,
		ClientID:       params.ClientID,
		ReplyToID:      params.ReplyToID,
	}
	f.nextID++
	f.messages[msg.ID] = msg
	copied := *msg
	return &copied, nil
}

func (f *fakeChats) FindConversation(_ context.Context, conversationID int64) (*chats.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFind != nil {
		return nil, f.failFind
	}

	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, chats.ErrNotFound
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeChats) UpdateMessageStatus(_ context.Context, messageID int64, status domain.MessageStatus, _ string) (*chats.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return nil, f.failUpdate
	}

	msg, ok := f.messages[messageID]
	if !ok {
		return nil, chats.ErrNotFound
	}
	msg.Status = status
	copied := *msg
	return &copied, nil
}

func (f *fakeChats) MarkMessagesRead(_ context.Context, conversationID, _ int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := f.unreadCounts[conversationID]
	f.unreadCounts[conversationID] = 0
	return count, nil
}

// emission is one captured routing call.
type emission struct {
	kind    string // "room", "user", "conn"
	room    string
	userID  int64
	connID  string
	exclude string
	event   string
	payload any
}

type captureEmitter struct {
	mu   sync.Mutex
	sent []emission
}

func (e *captureEmitter) Broadcast(_ context.Context, room, event string, payload any) error {
	e.record(emission{kind: "room", room: room, event: event, payload: payload})
	return nil
}

func (e *captureEmitter) BroadcastExcept(_ context.Context, room, event string, payload any, exclude string) error {
	e.record(emission{kind: "room", room: room, event: event, payload: payload, exclude: exclude})
	return nil
}

func (e *captureEmitter) BroadcastToUser(_ context.Context, userID int64, event string, payload any) error {
	e.record(emission{kind: "user", userID: userID, event: event, payload: payload})
	return nil
}

func (e *captureEmitter) ToConnection(connID, event string, payload any) bool {
	e.record(emission{kind: "conn", connID: connID, event: event, payload: payload})
	return true
}

func (e *captureEmitter) record(em emission) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, em)
}

func (e *captureEmitter) emissions() []emission {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]emission(nil), e.sent...)
}

func (e *captureEmitter) byEvent(event string) []emission {
	var out []emission
	for _, em := range e.emissions() {
		if em.event == event {
			out = append(out, em)
		}
	}
	return out
}
