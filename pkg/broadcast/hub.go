package broadcast

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"menagerie/pkg/logging"
)

// Event names emitted by the orchestration core.
const (
	EventTypingStarted    = "typing-started"
	EventTypingStopped    = "typing-stopped"
	EventNewDirectMessage = "new-direct-message"
	EventNewPost          = "new-post"
	EventNewComment       = "new-comment"
)

const writeWait = 10 * time.Second

// envelope is the wire format for every broadcast event.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Hub fans broadcast events out to connected WebSocket clients.
// Emit is fire-and-forget: there is no acknowledgment and no delivery
// guarantee to any particular subscriber.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local single-user app, same-origin checks add nothing.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Broadcast: upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	slog.Debug("Broadcast: client connected", "clients", count)

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Emit broadcasts an event to all connected clients. Slow clients are
// disconnected rather than allowed to block the sender.
func (h *Hub) Emit(event string, payload any) {
	data, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		slog.Error("Broadcast: marshal failed", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	logging.TraceDefault("Broadcast: emit", "event", event, "clients", len(h.clients))
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("Broadcast: dropping slow client")
			h.removeLocked(c)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// removeLocked unregisters a client. Caller must hold h.mu.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()
			return
		}
	}
	// Channel closed by removeLocked
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// readLoop drains inbound frames so pings are answered, and unregisters the
// client when the connection drops.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()
			return
		}
	}
}
