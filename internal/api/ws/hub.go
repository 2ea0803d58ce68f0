package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/aedes/internal/observability"
	"github.com/your-org/aedes/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a connected WebSocket client.
type Client struct {
	conn  *websocket.Conn
	send  chan []byte
	types map[string]struct{} // optional event-type filter
}

func (c *Client) wants(evtType string) bool {
	if len(c.types) == 0 {
		return true
	}
	_, ok := c.types[evtType]
	return ok
}

// Hub maintains active WebSocket clients and broadcasts batch item events
// so dashboards can re-render per status or progress change without polling.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan dto.WSEvent
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan dto.WSEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected", "type_filter", len(client.types))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			observability.WSConnections.Dec()
			slog.Debug("ws client disconnected")

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("marshal ws event", "error", err)
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(event.Type) {
					continue
				}

				select {
				case client.send <- data:
				default:
					// Client buffer full — disconnect
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent queues a batch item event for delivery to all clients.
func (h *Hub) BroadcastEvent(event dto.WSEvent) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("ws broadcast buffer full, dropping event", "type", event.Type)
	}
}

// HandleWS handles WebSocket upgrade requests. Clients may narrow delivery
// with ?types=item_completed,item_failed.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	var types map[string]struct{}
	if raw := c.Query("types"); raw != "" {
		types = make(map[string]struct{})
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types[t] = struct{}{}
			}
		}
	}

	client := &Client{
		conn:  conn,
		send:  make(chan []byte, 64),
		types: types,
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		// We don't process incoming messages from clients.
		// This loop exists to detect disconnection.
	}
}
