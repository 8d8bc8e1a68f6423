package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eduline/chat-gateway/internal/config"
	"github.com/eduline/chat-gateway/internal/domain"
	"github.com/eduline/chat-gateway/pkg/log"
)

// Client is one live WebSocket connection owned by an authenticated
// user. All writes go through the buffered Send channel; the write pump
// is the only goroutine touching the underlying socket for output.
type Client struct {
	ID     string
	UserID int64
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	config config.WebSocketConfig

	mu     sync.Mutex
	closed bool
}

func NewClient(id string, userID int64, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		config: cfg,
	}
}

// ReadPump drives the connection: inbound frames are handed to
// onMessage synchronously, so events from one connection are processed
// in receipt order. onClose fires exactly once when the pump exits.
func (c *Client) ReadPump(onMessage func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Str(log.FieldConnID, c.ID).Err(err).Msg("websocket read error")
			}
			break
		}
		onMessage(c, message)
	}
}

// WritePump flushes the Send channel to the socket and keeps the
// connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendFrame queues an event frame for this connection. A full Send
// buffer drops the frame rather than blocking the caller; a closed
// connection drops it silently.
func (c *Client) SendFrame(event string, data any) error {
	raw, err := json.Marshal(domain.Frame{Event: event, Data: data})
	if err != nil {
		return err
	}

	// The lock orders this send against closeSend: once closed is set,
	// no goroutine can reach the channel again.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}

	select {
	case c.Send <- raw:
	default:
		l := log.L()
		l.Warn().Str(log.FieldConnID, c.ID).Str(log.FieldEvent, event).Msg("send buffer full, frame dropped")
	}
	return nil
}

// closeSend closes the Send channel exactly once. Only the hub calls
// this, when the connection is unregistered.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
