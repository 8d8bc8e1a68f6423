package hub

import (
	"encoding/json"
	"sync"

	"github.com/eduline/chat-gateway/internal/domain"
	"github.com/eduline/chat-gateway/pkg/log"
)

// Hub tracks the live connections of one process and their room
// membership. Broadcasts are funneled through a single channel so room
// iteration never races with membership changes held only under the
// read lock.
type Hub struct {
	clients    map[string]*Client            // connID -> client
	rooms      map[string]map[string]*Client // room -> connID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomMessage
	mu         sync.RWMutex
}

// roomMessage is a pre-marshaled frame addressed to a room. An empty
// room addresses every connected client. Exclude names a connection to
// skip (the typing sender, for instance).
type roomMessage struct {
	Room    string
	Data    []byte
	Exclude string
}

func New() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomMessage, 256),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l := log.Component("hub")
			l.Debug().Str(log.FieldConnID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for room, members := range h.rooms {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.rooms, room)
					}
				}
				delete(h.clients, client.ID)
				client.closeSend()
			}
			h.mu.Unlock()
			l := log.Component("hub")
			l.Debug().Str(log.FieldConnID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			if msg.Room == "" {
				for connID, client := range h.clients {
					if connID == msg.Exclude {
						continue
					}
					h.deliver(client, msg.Data)
				}
			} else if members, ok := h.rooms[msg.Room]; ok {
				for connID, client := range members {
					if connID == msg.Exclude {
						continue
					}
					h.deliver(client, msg.Data)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		// Slow consumer: drop it rather than stall the broadcast loop.
		go func() { h.unregister <- client }()
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Join adds a connection to a room. A connection may be in any number
// of rooms; membership vanishes with the connection.
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][client.ID] = client
	l := log.Component("hub")
	l.Info().Str(log.FieldConnID, client.ID).Str(log.FieldRoom, room).Msg("joined room")
}

func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	l := log.Component("hub")
	l.Info().Str(log.FieldConnID, client.ID).Str(log.FieldRoom, room).Msg("left room")
}

// Broadcast queues an event frame for every local member of a room.
// Acceptance by the broadcast channel is all the caller waits for.
func (h *Hub) Broadcast(room, event string, payload any, exclude string) error {
	data, err := json.Marshal(domain.Frame{Event: event, Data: payload})
	if err != nil {
		return err
	}
	h.BroadcastRaw(room, data, exclude)
	return nil
}

// BroadcastRaw queues a pre-marshaled frame for a room. An empty room
// name addresses all local clients.
func (h *Hub) BroadcastRaw(room string, data []byte, exclude string) {
	h.broadcast <- &roomMessage{Room: room, Data: data, Exclude: exclude}
}

// SendTo delivers a frame to a single local connection. Returns false
// if the connection is not registered on this process.
func (h *Hub) SendTo(connID, event string, payload any) bool {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	client.SendFrame(event, payload)
	return true
}

// RoomSize returns the number of local connections joined to a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if members, ok := h.rooms[room]; ok {
		return len(members)
	}
	return 0
}

// ClientCount returns the number of connections registered locally.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
