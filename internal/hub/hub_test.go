package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/eduline/chat-gateway/internal/config"
	"github.com/eduline/chat-gateway/internal/domain"
)

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 8192,
	}
}

// newTestClient builds a client with no underlying socket. The pumps
// are never started, so frames accumulate in the Send channel.
func newTestClient(h *Hub, id string, userID int64) *Client {
	return NewClient(id, userID, h, nil, testWSConfig())
}

func recvFrame(t *testing.T, c *Client) domain.Frame {
	t.Helper()
	select {
	case raw := <-c.Send:
		var f domain.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatalf("no frame received on %s", c.ID)
		return domain.Frame{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected frame on %s: %s", c.ID, raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesRoomMembersOnly(t *testing.T) {
	h := New()
	go h.Run()

	a := newTestClient(h, "a", 1)
	b := newTestClient(h, "b", 2)
	c := newTestClient(h, "c", 3)
	h.Register(a)
	h.Register(b)
	h.Register(c)

	h.Join(a, "conversation:7")
	h.Join(b, "conversation:7")

	if err := h.Broadcast("conversation:7", "message:received", map[string]int{"id": 1}, ""); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	if f := recvFrame(t, a); f.Event != "message:received" {
		t.Errorf("a got event %q", f.Event)
	}
	if f := recvFrame(t, b); f.Event != "message:received" {
		t.Errorf("b got event %q", f.Event)
	}
	assertNoFrame(t, c)
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := New()
	go h.Run()

	a := newTestClient(h, "a", 1)
	b := newTestClient(h, "b", 2)
	h.Register(a)
	h.Register(b)
	h.Join(a, "conversation:7")
	h.Join(b, "conversation:7")

	if err := h.Broadcast("conversation:7", "user:typing", nil, "a"); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	recvFrame(t, b)
	assertNoFrame(t, a)
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.After(time.Second)
	for h.ClientCount() != n {
		select {
		case <-deadline:
			t.Fatalf("hub never reached %d clients", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBroadcastEmptyRoomReachesEveryone(t *testing.T) {
	h := New()
	go h.Run()

	a := newTestClient(h, "a", 1)
	b := newTestClient(h, "b", 2)
	h.Register(a)
	h.Register(b)
	waitForClients(t, h, 2)

	if err := h.Broadcast("", "user:presence", nil, ""); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	recvFrame(t, a)
	recvFrame(t, b)
}

func TestLeaveStopsDelivery(t *testing.T) {
	h := New()
	go h.Run()

	a := newTestClient(h, "a", 1)
	h.Register(a)
	h.Join(a, "class:3")

	if n := h.RoomSize("class:3"); n != 1 {
		t.Fatalf("RoomSize = %d; want 1", n)
	}

	h.Leave(a, "class:3")
	if n := h.RoomSize("class:3"); n != 0 {
		t.Fatalf("RoomSize after leave = %d; want 0", n)
	}

	h.Broadcast("class:3", "post:created", nil, "")
	assertNoFrame(t, a)
}

func TestUnregisterRemovesFromAllRooms(t *testing.T) {
	h := New()
	go h.Run()

	a := newTestClient(h, "a", 1)
	h.Register(a)
	h.Join(a, "conversation:1")
	h.Join(a, "user:1")

	waitForClients(t, h, 1)
	h.Unregister(a)
	waitForClients(t, h, 0)

	if n := h.RoomSize("conversation:1"); n != 0 {
		t.Errorf("RoomSize(conversation:1) = %d; want 0", n)
	}
	if n := h.RoomSize("user:1"); n != 0 {
		t.Errorf("RoomSize(user:1) = %d; want 0", n)
	}

	// Send channel is closed once the unregister is processed.
	if _, ok := <-a.Send; ok {
		t.Error("Send channel should be closed after unregister")
	}
}

func TestSendTo(t *testing.T) {
	h := New()
	go h.Run()

	a := newTestClient(h, "a", 1)
	h.Register(a)
	waitForClients(t, h, 1)

	if !h.SendTo("a", "reconnected", domain.ReconnectedPayload{UserID: 1}) {
		t.Fatal("SendTo(a) = false; want true")
	}
	if f := recvFrame(t, a); f.Event != "reconnected" {
		t.Errorf("got event %q; want reconnected", f.Event)
	}

	if h.SendTo("ghost", "reconnected", nil) {
		t.Error("SendTo(ghost) = true; want false")
	}
}

func TestSendFrameAfterUnregisterDropsSilently(t *testing.T) {
	h := New()
	go h.Run()

	a := newTestClient(h, "a", 1)
	h.Register(a)
	waitForClients(t, h, 1)
	h.Unregister(a)
	waitForClients(t, h, 0)

	// The Send channel is closed now; a late direct send must drop,
	// not panic.
	if err := a.SendFrame("reconnected", nil); err != nil {
		t.Fatalf("SendFrame after unregister: %v", err)
	}
	if h.SendTo("a", "reconnected", nil) {
		t.Error("SendTo after unregister = true; want false")
	}
}

func TestSendToRacingUnregister(t *testing.T) {
	for i := 0; i < 25; i++ {
		h := New()
		go h.Run()

		a := newTestClient(h, "a", 1)
		h.Register(a)
		waitForClients(t, h, 1)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 50; j++ {
				h.SendTo("a", "user:presence", nil)
			}
		}()

		h.Unregister(a)
		<-done
	}
}
