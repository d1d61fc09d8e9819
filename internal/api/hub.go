package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/wifi"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Messages buffered per client before it is considered too slow
	sendBuffer = 32
)

// Message types carried on the stream.
const (
	MessageHello  = "hello"
	MessageEvent  = "event"
	MessageResult = "result"
	MessageStatus = "status"
)

// Message is one frame of the /api/ws stream.
type Message struct {
	Type   string            `json:"type"`
	Time   time.Time         `json:"time"`
	Event  *wifi.Event       `json:"event,omitempty"`
	Result *provision.Result `json:"result,omitempty"`
	Status *provision.Status `json:"status,omitempty"`
}

type client struct {
	conn       *websocket.Conn
	remoteAddr string
	send       chan Message
}

// Hub fans station events and test results out to WebSocket clients. A
// client that falls behind by more than sendBuffer messages is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// PublishEvent broadcasts a station event.
func (h *Hub) PublishEvent(ev wifi.Event) {
	h.broadcast(Message{Type: MessageEvent, Time: time.Now(), Event: &ev})
}

// PublishResult broadcasts a completed test result.
func (h *Hub) PublishResult(r provision.Result) {
	h.broadcast(Message{Type: MessageResult, Time: time.Now(), Result: &r})
}

// PublishStatus broadcasts a controller snapshot, sent after API calls
// that change it.
func (h *Hub) PublishStatus(st provision.Status) {
	h.broadcast(Message{Type: MessageStatus, Time: time.Now(), Status: &st})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logging.Warn("WebSocket client too slow, disconnecting",
				zap.String("remote_addr", c.remoteAddr),
			)
			h.removeLocked(c)
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// serve runs the client until either side goes away. hello is sent first.
func (h *Hub) serve(conn *websocket.Conn, remoteAddr string, hello Message) {
	c := &client{conn: conn, remoteAddr: remoteAddr, send: make(chan Message, sendBuffer)}
	c.send <- hello
	if !h.add(c) {
		_ = conn.Close()
		return
	}
	logging.Debug("WebSocket client connected", zap.String("remote_addr", remoteAddr))

	go c.writePump()
	c.readPump()
	h.remove(c)
	logging.Debug("WebSocket client disconnected", zap.String("remote_addr", remoteAddr))
}

// readPump discards client messages; it exists to process control frames
// and to notice the peer closing.
func (c *client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("WebSocket read error",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logging.Debug("WebSocket write failed",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
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
