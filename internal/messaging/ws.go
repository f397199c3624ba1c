package messaging

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Thread event types pushed to websocket subscribers.
const (
	EventMessageNew    = "message_new"
	EventMessageRead   = "message_read"
	EventStatusChanged = "status_changed"
	EventDelivered     = "delivered"
	EventPresenceJoin  = "presence_join"
	EventPresenceLeave = "presence_leave"
)

// Broadcaster publishes thread events for one service request.
type Broadcaster interface {
	Broadcast(requestID, eventType string, data any)
}

type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

// client owns one connection. Only its write loop touches the socket for
// writes; Broadcast just queues.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBuffer)}
}

// writeLoop ends when the queue is closed, either by unregister or because
// Broadcast dropped the client; closing the socket then ends the read loop.
func (c *client) writeLoop(logger *slog.Logger) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Debug("ws write", "err", err)
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

type room struct {
	mu      sync.Mutex
	clients map[*client]bool
}

// drop removes c and closes its queue. r.mu must be held.
func (r *room) drop(c *client) {
	if r.clients[c] {
		delete(r.clients, c)
		close(c.send)
	}
}

// Hub fans thread events out to the parties connected to a request.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]*room
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms: make(map[string]*room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) room(requestID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[requestID]
}

func (h *Hub) register(requestID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[requestID]
	if !ok {
		r = &room{clients: make(map[*client]bool)}
		h.rooms[requestID] = r
	}
	r.mu.Lock()
	r.clients[c] = true
	r.mu.Unlock()
}

func (h *Hub) unregister(requestID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[requestID]
	if !ok {
		return
	}
	r.mu.Lock()
	r.drop(c)
	empty := len(r.clients) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, requestID)
	}
}

// Subscribers returns the number of open connections on a request.
func (h *Hub) Subscribers(requestID string) int {
	r := h.room(requestID)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Broadcast queues the event for every subscriber of the request without
// blocking. A subscriber whose queue is full is disconnected.
func (h *Hub) Broadcast(requestID, eventType string, data any) {
	r := h.room(requestID)
	if r == nil {
		return
	}
	payload, err := json.Marshal(wsEvent{Type: eventType, Data: data})
	if err != nil {
		h.logger.Warn("ws broadcast: encode", "type", eventType, "err", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("ws broadcast: subscriber too slow, dropping", "request_id", requestID)
			r.drop(c)
		}
	}
}

// Serve upgrades the connection and blocks until the client goes away.
// The caller has already checked that userID is a party to requestID.
func (h *Hub) Serve(c echo.Context, requestID, userID string) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	cl := newClient(ws)
	done := make(chan struct{})
	go func() {
		defer close(done)
		cl.writeLoop(h.logger)
	}()
	h.register(requestID, cl)
	h.Broadcast(requestID, EventPresenceJoin, echo.Map{"user_id": userID})

	// client frames are discarded; the protocol is server push
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(requestID, cl)
	<-done
	_ = ws.Close()
	h.Broadcast(requestID, EventPresenceLeave, echo.Map{"user_id": userID})
	return nil
}
