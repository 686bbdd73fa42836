package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raysh454/stockscan/internal/logging"
)

const (
	writeWait = 10 * time.Second

	// sendBuffer is how many notifications may queue for one client before it
	// is considered stuck and dropped.
	sendBuffer = 16
)

// client is one connected view. Only its writer goroutine touches conn for
// writes; send is closed by Hub.remove.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts notifications to every connected websocket client. Notify
// never waits on the network: each client has its own queue and writer.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   logging.Logger
}

func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With(logging.Field{Key: "component", Value: "notify-hub"}),
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Field{Key: "error", Value: err.Error()})
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("notification client connected", logging.Field{Key: "clients", Value: count})

	go h.writeLoop(c)

	// Drain reads so close frames are processed; the client never sends data.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) writeLoop(c *client) {
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("notification write failed", logging.Field{Key: "error", Value: err.Error()})
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
		h.logger.Info("notification client disconnected", logging.Field{Key: "clients", Value: count})
	}
}

// Notify implements Notifier. It queues n for every client and returns;
// a client whose queue is full is dropped.
func (h *Hub) Notify(n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("encoding notification", logging.Field{Key: "error", Value: err.Error()})
		return
	}

	h.mu.Lock()
	var stuck []*client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			stuck = append(stuck, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stuck {
		h.logger.Warn("dropping slow notification client")
		h.remove(c)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}
