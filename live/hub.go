// Package live fans score and contest updates out to websocket viewers.
// Rooms are keyed by contest id; delivery is best-effort with no ordering
// guarantee beyond eventually reflecting the latest write.
package live

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MessageScoreUpdated   = "SCORE_UPDATED"
	MessageContestUpdated = "CONTEST_UPDATED"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Message is the wire envelope pushed to viewers.
type Message struct {
	Type      string `json:"type"`
	ContestID string `json:"contest_id"`
	Payload   any    `json:"payload,omitempty"`
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	room string

	mu     sync.Mutex
	closed bool
}

type Hub struct {
	register   chan *Client
	unregister chan *Client
	outbound   chan queued

	mu     sync.RWMutex
	rooms  map[string]map[*Client]bool
	logger *slog.Logger
}

type queued struct {
	room string
	data []byte
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan queued, 64),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if clients[client] {
					delete(clients, client)
					client.close()
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.outbound:
			h.mu.RLock()
			for client := range h.rooms[msg.room] {
				client.trySend(msg.data)
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues a message for every viewer of the contest room. Never
// blocks the caller: a full hub drops the message and the viewer catches up
// on the next one.
func (h *Hub) Broadcast(contestID string, msg Message) {
	msg.ContestID = contestID
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal live message", slog.Any("error", err))
		return
	}
	select {
	case h.outbound <- queued{room: contestID, data: data}:
	default:
		h.logger.Warn("live hub outbound queue full, dropping message",
			slog.String("contest_id", contestID))
	}
}

// Join attaches a websocket connection to a contest room and starts its
// pumps. The connection is owned by the hub from here on.
func (h *Hub) Join(contestID string, conn *websocket.Conn) {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		room: contestID,
	}
	h.register <- client
	go client.writePump()
	go client.readPump()
}

func (c *Client) trySend(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		// Slow consumer; skip rather than stall the room.
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// Viewers are read-only; inbound payloads are drained and ignored.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", slog.String("room", c.room), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
