// Package feed streams ticket lifecycle events to websocket clients such as
// the front-desk board.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hestia.local/dispatch/internal/events"
)

const (
	defaultClientBuffer = 32
	writeWait           = 5 * time.Second
)

type Option func(*Hub)

// WithCheckOrigin overrides the websocket origin policy.
func WithCheckOrigin(check func(*http.Request) bool) Option {
	return func(h *Hub) {
		if check != nil {
			h.upgrader.CheckOrigin = check
		}
	}
}

func WithClientBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is a Subscriber that broadcasts ticket events to every connected
// client. Clients that cannot keep up are disconnected.
type Hub struct {
	logger     *log.Logger
	upgrader   websocket.Upgrader
	bufferSize int

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(logger *log.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &Hub{
		logger:     logger,
		bufferSize: defaultClientBuffer,
		clients:    make(map[*client]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *Hub) Name() string {
	return "feed"
}

func (h *Hub) Handle(_ context.Context, event events.Event) error {
	if !event.Type.IsTicket() {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Printf("feed client too slow, dropping remote=%s", c.conn.RemoteAddr())
			h.removeLocked(c)
		}
	}
	return nil
}

// Len reports connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("feed websocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.bufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
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
