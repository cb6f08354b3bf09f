package services

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/AnshRaj112/rockhunter-backend/internal/mapview"
)

const hubSendBuffer = 8

// HubConn is the minimal interface our WebSocket implementation must satisfy.
type HubConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type hubClient struct {
	id   uuid.UUID
	conn HubConn
	send chan mapview.Frame
}

// RockHub fans map frames out to connected browsers. Each client has its
// own writer goroutine, so a slow socket never blocks a broadcast.
type RockHub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*hubClient
	logger  *slog.Logger
}

func NewRockHub(logger *slog.Logger) *RockHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &RockHub{clients: make(map[uuid.UUID]*hubClient), logger: logger}
}

// Register adds conn and sends it initial before any broadcast.
func (h *RockHub) Register(conn HubConn, initial mapview.Frame) uuid.UUID {
	c := &hubClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan mapview.Frame, hubSendBuffer),
	}
	c.send <- initial

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	go h.writeLoop(c)
	return c.id
}

// Unregister removes a client and closes its connection.
func (h *RockHub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()

	if ok {
		close(c.send)
	}
}

// Broadcast queues frame for every client. A client whose queue is full
// misses this frame; the next one redraws everything anyway.
func (h *RockHub) Broadcast(frame mapview.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.logger.Debug("websocket client lagging, frame dropped", "client_id", c.id.String(), "version", frame.Version)
		}
	}
}

func (h *RockHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *RockHub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[uuid.UUID]*hubClient)
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
	}
}

func (h *RockHub) writeLoop(c *hubClient) {
	defer c.conn.Close()
	for frame := range c.send {
		if err := c.conn.WriteJSON(frame); err != nil {
			h.logger.Debug("error writing frame to websocket", "client_id", c.id.String(), "err", err)
			h.Unregister(c.id)
			// Drain until Unregister closes the channel
			for range c.send {
			}
			return
		}
	}
}
