package chat

import (
	"context"
	"testing"
	"time"

	"github.com/eduline/chat-gateway/internal/domain"
)

func typingPayloads(emit *captureEmitter) []domain.TypingBroadcast {
	var out []domain.TypingBroadcast
	for _, em := range emit.byEvent(domain.EventUserTyping) {
		if tb, ok := em.payload.(domain.TypingBroadcast); ok {
			out = append(out, tb)
		}
	}
	return out
}

func TestTypingStartBroadcastsExcludingSender(t *testing.T) {
	emit := &captureEmitter{}
	ty := NewTyping(emit, time.Minute)
	defer ty.Shutdown()

	ty.Start(context.Background(), "conn-a", 7, 1)

	ems := emit.byEvent(domain.EventUserTyping)
	if len(ems) != 1 {
		t.Fatalf("emitted %d times; want 1", len(ems))
	}
	if ems[0].room != "conversation:7" || ems[0].exclude != "conn-a" {
		t.Errorf("emission = %+v", ems[0])
	}
	if tb := typingPayloads(emit)[0]; !tb.IsTyping || tb.UserID != 1 {
		t.Errorf("payload = %+v", tb)
	}
}

func TestTypingStopBroadcastsStop(t *testing.T) {
	emit := &captureEmitter{}
	ty := NewTyping(emit, time.Minute)
	defer ty.Shutdown()

	ty.Start(context.Background(), "conn-a", 7, 1)
	ty.Stop(context.Background(), "conn-a", 7, 1)

	payloads := typingPayloads(emit)
	if len(payloads) != 2 {
		t.Fatalf("got %d broadcasts; want 2", len(payloads))
	}
	if payloads[1].IsTyping {
		t.Error("second broadcast should report typing stopped")
	}
}

func TestTypingAutoStopFires(t *testing.T) {
	emit := &captureEmitter{}
	ty := NewTyping(emit, 30*time.Millisecond)
	defer ty.Shutdown()

	ty.Start(context.Background(), "conn-a", 7, 1)

	deadline := time.After(time.Second)
	for len(typingPayloads(emit)) < 2 {
		select {
		case <-deadline:
			t.Fatal("auto-stop never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	payloads := typingPayloads(emit)
	if payloads[1].IsTyping {
		t.Error("auto-stop should broadcast typing stopped")
	}

	// Explicit stop after the timeout already fired adds a broadcast but
	// must not panic or double-fire the timer.
	ty.Stop(context.Background(), "conn-a", 7, 1)
}

func TestTypingRestartRearmsTimer(t *testing.T) {
	emit := &captureEmitter{}
	ty := NewTyping(emit, 60*time.Millisecond)
	defer ty.Shutdown()

	ty.Start(context.Background(), "conn-a", 7, 1)
	time.Sleep(35 * time.Millisecond)
	ty.Start(context.Background(), "conn-a", 7, 1)
	time.Sleep(35 * time.Millisecond)

	// First timer would have fired by now had it not been re-armed.
	for _, tb := range typingPayloads(emit) {
		if !tb.IsTyping {
			t.Fatal("auto-stop fired despite restart")
		}
	}
}

func TestTypingCleanupConnection(t *testing.T) {
	emit := &captureEmitter{}
	ty := NewTyping(emit, time.Minute)
	defer ty.Shutdown()

	ty.Start(context.Background(), "conn-a", 7, 1)
	ty.Start(context.Background(), "conn-a", 8, 1)
	ty.Start(context.Background(), "conn-b", 7, 2)

	ty.CleanupConnection(context.Background(), "conn-a")

	var stops []domain.TypingBroadcast
	for _, tb := range typingPayloads(emit) {
		if !tb.IsTyping {
			stops = append(stops, tb)
		}
	}
	if len(stops) != 2 {
		t.Fatalf("got %d stop broadcasts; want 2 (both conn-a sessions)", len(stops))
	}
	for _, tb := range stops {
		if tb.UserID != 1 {
			t.Errorf("stop for user %d; want 1", tb.UserID)
		}
	}
}

func TestTypingSessionsIsolatedPerConversation(t *testing.T) {
	emit := &captureEmitter{}
	ty := NewTyping(emit, time.Minute)
	defer ty.Shutdown()

	ty.Start(context.Background(), "conn-a", 7, 1)
	ty.Start(context.Background(), "conn-b", 9, 1)
	ty.Stop(context.Background(), "conn-a", 7, 1)

	ems := emit.byEvent(domain.EventUserTyping)
	if len(ems) != 3 {
		t.Fatalf("emitted %d times; want 3", len(ems))
	}
	// The stop belongs to conversation 7 only.
	last := ems[2]
	if last.room != "conversation:7" {
		t.Errorf("stop room = %q; want conversation:7", last.room)
	}
}
