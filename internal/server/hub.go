package server

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ght123247/UIproj/internal/adapters/observability"
	"github.com/ght123247/UIproj/internal/ports"
)

const (
	wsWriteTimeout = time.Second
	hubComponent   = "websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex // gorilla allows one concurrent writer
}

func (c *wsClient) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub fans card snapshots out to every connected page. Broadcasts are
// dropped rather than queued when the hub is behind; the next refresh
// carries the newer state anyway.
type Hub struct {
	obs       ports.Observability
	broadcast chan []byte

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func NewHub(obs ports.Observability) *Hub {
	if obs == nil {
		obs = observability.Discard{}
	}
	return &Hub{
		obs:       obs,
		broadcast: make(chan []byte, 1),
		clients:   make(map[*wsClient]struct{}),
	}
}

// Run delivers broadcasts until ctx ends, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case msg := <-h.broadcast:
			for _, c := range h.snapshot() {
				if err := c.write(msg); err != nil {
					h.obs.LogError("ws_write_failed", err, ports.Field{Key: "component", Value: hubComponent})
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request, sends greeting (when non-nil) and
// keeps the client registered until it disconnects.
func (h *Hub) HandleWebSocket(greeting func() []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.obs.LogError("ws_upgrade_failed", err, ports.Field{Key: "component", Value: hubComponent})
			return
		}
		client := &wsClient{conn: conn}
		h.add(client)
		defer h.remove(client)

		if greeting != nil {
			if msg := greeting(); msg != nil {
				if err := client.write(msg); err != nil {
					return
				}
			}
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.obs.LogError("ws_read_failed", err, ports.Field{Key: "component", Value: hubComponent})
				}
				return
			}
		}
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.obs.SetGauge(observability.WebsocketClients, hubComponent, float64(n))
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		h.obs.SetGauge(observability.WebsocketClients, hubComponent, float64(n))
	}
}

func (h *Hub) snapshot() []*wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) closeAll() {
	for _, c := range h.snapshot() {
		h.remove(c)
	}
}
