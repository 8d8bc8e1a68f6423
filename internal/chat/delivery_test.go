package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/eduline/chat-gateway/internal/chats"
	"github.com/eduline/chat-gateway/internal/domain"
)

func newTestDelivery(fc *fakeChats) (*Delivery, *captureEmitter) {
	guard, _ := newTestGuard(fc)
	emit := &captureEmitter{}
	return NewDelivery(fc, guard, emit, nil), emit
}

func TestSendRoutesToConversationAndRecipient(t *testing.T) {
	fc := newFakeChats()
	fc.addConversation(7, 1, 2)
	d, emit := newTestDelivery(fc)

	msg, err := d.Send(context.Background(), "conn-a", 1, domain.SendMessagePayload{
		SenderID:       1,
		ConversationID: 7,
		Content:        "hello",
		ClientID:       "tmp-123",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if msg.Status != domain.StatusSent {
		t.Errorf("status = %q; want sent", msg.Status)
	}
	if msg.MessageType != domain.MessageTypeText {
		t.Errorf("message type = %q; want text default", msg.MessageType)
	}
	if msg.ClientID != "tmp-123" {
		t.Errorf("client id = %q; want tmp-123", msg.ClientID)
	}

	received := emit.byEvent(domain.EventMessageReceived)
	if len(received) != 2 {
		t.Fatalf("message:received emitted %d times; want 2", len(received))
	}
	if received[0].kind != "room" || received[0].room != "conversation:7" {
		t.Errorf("first emission = %+v; want conversation room", received[0])
	}
	if received[1].kind != "user" || received[1].userID != 2 {
		t.Errorf("second emission = %+v; want recipient user room", received[1])
	}

	sent := emit.byEvent(domain.EventMessageSent)
	if len(sent) != 1 || sent[0].connID != "conn-a" {
		t.Fatalf("message:sent = %+v; want one to conn-a", sent)
	}
}

func TestSendRejectsSenderMismatch(t *testing.T) {
	fc := newFakeChats()
	fc.addConversation(7, 1, 2)
	d, emit := newTestDelivery(fc)

	_, err := d.Send(context.Background(), "conn-a", 2, domain.SendMessagePayload{
		SenderID:       1,
		ConversationID: 7,
		Content:        "spoofed",
	})
	if !errors.Is(err, ErrSenderMismatch) {
		t.Fatalf("Send = %v; want ErrSenderMismatch", err)
	}
	if len(emit.emissions()) != 0 {
		t.Errorf("nothing should be emitted on rejection, got %+v", emit.emissions())
	}
	if len(fc.messages) != 0 {
		t.Error("no message should be persisted on rejection")
	}
}

func TestSendRejectsNonParticipant(t *testing.T) {
	fc := newFakeChats()
	fc.addConversation(7, 1, 2)
	d, _ := newTestDelivery(fc)

	_, err := d.Send(context.Background(), "conn-x", 99, domain.SendMessagePayload{
		SenderID:       99,
		ConversationID: 7,
		Content:        "intruder",
	})
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("Send = %v; want ErrNotParticipant", err)
	}
}

func TestSendRejectsEmptyContent(t *testing.T) {
	fc := newFakeChats()
	fc.addConversation(7, 1, 2)
	d, _ := newTestDelivery(fc)

	_, err := d.Send(context.Background(), "conn-a", 1, domain.SendMessagePayload{
		SenderID:       1,
		ConversationID: 7,
	})
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("Send = %v; want ErrInvalidMessage", err)
	}
}

func TestSendSurvivesSentTransitionFailure(t *testing.T) {
	fc := newFakeChats()
	fc.addConversation(7, 1, 2)
	d, emit := newTestDelivery(fc)

	fc.failUpdate = errors.New("persistence hiccup")

	msg, err := d.Send(context.Background(), "conn-a", 1, domain.SendMessagePayload{
		SenderID:       1,
		ConversationID: 7,
		Content:        "still goes through",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	// Routed with the persisted status rather than dropped.
	if msg.Status != domain.StatusSending {
		t.Errorf("status = %q; want sending", msg.Status)
	}
	if len(emit.byEvent(domain.EventMessageReceived)) != 2 {
		t.Error("message should still be routed")
	}
}

func TestMarkDeliveredNotifiesSender(t *testing.T) {
	fc := newFakeChats()
	fc.addConversation(7, 1, 2)
	d, emit := newTestDelivery(fc)

	msg, err := d.Send(context.Background(), "conn-a", 1, domain.SendMessagePayload{
		SenderID: 1, ConversationID: 7, Content: "hi",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	err = d.MarkDelivered(context.Background(), 2, domain.MessageDeliveredPayload{
		MessageID: msg.ID,
		UserID:    2,
	})
	if err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}

	status := emit.byEvent(domain.EventMessageStatus)
	if len(status) != 1 {
		t.Fatalf("message:status emitted %d times; want 1", len(status))
	}
	if status[0].kind != "user" || status[0].userID != 1 {
		t.Errorf("status emission = %+v; want sender's user room", status[0])
	}
	payload, ok := status[0].payload.(domain.MessageStatusPayload)
	if !ok || payload.Status != domain.StatusDelivered || payload.MessageID != msg.ID {
		t.Errorf("status payload = %+v", status[0].payload)
	}
}

func TestMarkDeliveredValidatesMessageID(t *testing.T) {
	fc := newFakeChats()
	d, _ := newTestDelivery(fc)

	err := d.MarkDelivered(context.Background(), 2, domain.MessageDeliveredPayload{MessageID: 0})
	if !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("MarkDelivered = %v; want ErrInvalidMessage", err)
	}
}

func TestMarkDeliveredUnknownMessage(t *testing.T) {
	fc := newFakeChats()
	d, _ := newTestDelivery(fc)

	err := d.MarkDelivered(context.Background(), 2, domain.MessageDeliveredPayload{MessageID: 404})
	if !errors.Is(err, chats.ErrNotFound) {
		t.Errorf("MarkDelivered = %v; want ErrNotFound", err)
	}
}

func TestMarkReadNotifiesBothRooms(t *testing.T) {
	fc := newFakeChats()
	fc.addConversation(7, 1, 2)
	fc.unreadCounts[7] = 3
	d, emit := newTestDelivery(fc)

	err := d.MarkRead(context.Background(), 2, domain.MessageReadPayload{
		ConversationID:    7,
		UserID:            2,
		LastReadMessageID: 10,
	})
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	status := emit.byEvent(domain.EventMessageStatus)
	if len(status) != 2 {
		t.Fatalf("message:status emitted %d times; want 2", len(status))
	}
	if status[0].kind != "room" || status[0].room != "conversation:7" {
		t.Errorf("first status emission = %+v", status[0])
	}
	// The reader is user 2; the notification goes to user 1.
	if status[1].kind != "user" || status[1].userID != 1 {
		t.Errorf("second status emission = %+v; want user 1", status[1])
	}

	payload := status[0].payload.(domain.MessageStatusPayload)
	if payload.ReadCount != 3 || payload.ReadBy != 2 || payload.Status != domain.StatusRead {
		t.Errorf("payload = %+v", payload)
	}
	if payload.LastReadMessageID != 10 {
		t.Errorf("last read id = %d; want 10", payload.LastReadMessageID)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	fc := newFakeChats()
	fc.addConversation(7, 1, 2)
	d, emit := newTestDelivery(fc)

	// Nothing unread: still succeeds and still notifies with count 0.
	err := d.MarkRead(context.Background(), 2, domain.MessageReadPayload{ConversationID: 7})
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	status := emit.byEvent(domain.EventMessageStatus)
	if len(status) != 2 {
		t.Fatalf("message:status emitted %d times; want 2", len(status))
	}
	if payload := status[0].payload.(domain.MessageStatusPayload); payload.ReadCount != 0 {
		t.Errorf("read count = %d; want 0", payload.ReadCount)
	}
}
