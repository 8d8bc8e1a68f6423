package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eduline/chat-gateway/internal/domain"
	"github.com/eduline/chat-gateway/internal/router"
	"github.com/eduline/chat-gateway/pkg/log"
)

// Typing tracks who is typing in which conversation and guarantees a
// stop broadcast always follows a start: explicitly, by timeout, or
// when the connection drops.
type Typing struct {
	emit     Emitter
	delay    time.Duration
	mu       sync.Mutex
	sessions map[string]*typingSession // "<conversationID>:<userID>"
}

type typingSession struct {
	timer          *time.Timer
	connID         string
	conversationID int64
	userID         int64
}

func NewTyping(emit Emitter, autoStopDelay time.Duration) *Typing {
	if autoStopDelay <= 0 {
		autoStopDelay = 3 * time.Second
	}
	return &Typing{
		emit:     emit,
		delay:    autoStopDelay,
		sessions: make(map[string]*typingSession),
	}
}

func sessionKey(conversationID, userID int64) string {
	return fmt.Sprintf("%d:%d", conversationID, userID)
}

// Start broadcasts a typing indicator to the other members of the
// conversation and arms the auto-stop timer. A repeated start re-arms
// the timer.
func (t *Typing) Start(ctx context.Context, connID string, conversationID, userID int64) {
	key := sessionKey(conversationID, userID)

	t.mu.Lock()
	if existing, ok := t.sessions[key]; ok {
		existing.timer.Stop()
	}
	session := &typingSession{
		connID:         connID,
		conversationID: conversationID,
		userID:         userID,
	}
	session.timer = time.AfterFunc(t.delay, func() {
		t.autoStop(key, session)
	})
	t.sessions[key] = session
	t.mu.Unlock()

	t.broadcast(ctx, conversationID, userID, connID, true)
}

// Stop clears the session and broadcasts that typing ended.
func (t *Typing) Stop(ctx context.Context, connID string, conversationID, userID int64) {
	key := sessionKey(conversationID, userID)

	t.mu.Lock()
	session, ok := t.sessions[key]
	if ok {
		session.timer.Stop()
		delete(t.sessions, key)
	}
	t.mu.Unlock()

	// Broadcast even without a live session: an explicit stop after the
	// timeout already fired must not error.
	t.broadcast(ctx, conversationID, userID, connID, false)
}

// autoStop fires when a start was never followed by a stop. The session
// identity check keeps a stale timer from cancelling a newer session.
func (t *Typing) autoStop(key string, session *typingSession) {
	t.mu.Lock()
	current, ok := t.sessions[key]
	if !ok || current != session {
		t.mu.Unlock()
		return
	}
	delete(t.sessions, key)
	t.mu.Unlock()

	t.broadcast(context.Background(), session.conversationID, session.userID, session.connID, false)
}

// CleanupConnection synthesizes stop broadcasts for every typing
// session the connection held. Called on disconnect.
func (t *Typing) CleanupConnection(ctx context.Context, connID string) {
	t.mu.Lock()
	var stale []*typingSession
	for key, session := range t.sessions {
		if session.connID == connID {
			session.timer.Stop()
			delete(t.sessions, key)
			stale = append(stale, session)
		}
	}
	t.mu.Unlock()

	for _, session := range stale {
		t.broadcast(ctx, session.conversationID, session.userID, session.connID, false)
	}
}

// Shutdown stops all timers without broadcasting.
func (t *Typing) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, session := range t.sessions {
		session.timer.Stop()
		delete(t.sessions, key)
	}
}

func (t *Typing) broadcast(ctx context.Context, conversationID, userID int64, exclude string, isTyping bool) {
	payload := domain.TypingBroadcast{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
	}
	err := t.emit.BroadcastExcept(ctx, router.ConversationRoom(conversationID), domain.EventUserTyping, payload, exclude)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldConversationID, conversationID).Msg("typing broadcast failed")
	}
}
