package studio

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"admachine-studio/modules/common/metrics"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// the API is served to any origin, same as the REST routes
		return true
	},
}

// wsClient - one browser tab listening to a workspace
type wsClient struct {
	hub      *Hub
	conn     *websocket.Conn
	clientID string
	send     chan []byte
}

// wsMessage - inbound frame; only "ping" is understood
type wsMessage struct {
	Type string `json:"type"`
}

// Hub - fans workspace events out to every socket opened for that client id
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*wsClient]struct{}
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*wsClient]struct{}),
		log:     log.With().Str("component", "hub").Logger(),
	}
}

// ServeWS - GET /ws?client=<clientId>
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.URL.Query().Get("client"))
	if clientID == "" {
		http.Error(w, "missing client parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("⚠️ [Hub] WebSocket upgrade failed")
		return
	}

	c := &wsClient{
		hub:      h,
		conn:     conn,
		clientID: clientID,
		send:     make(chan []byte, sendBufferSize),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	set, ok := h.clients[c.clientID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.clients[c.clientID] = set
	}
	set[c] = struct{}{}
	count := len(set)
	h.mu.Unlock()

	metrics.WebSocketClients.Inc()
	h.log.Info().Str("client", c.clientID).Int("sockets", count).Msg("👤 [Hub] Client connected")
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *wsClient) {
	set, ok := h.clients[c.clientID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	close(c.send)
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.clientID)
	}
	metrics.WebSocketClients.Dec()
	h.log.Info().Str("client", c.clientID).Msg("👋 [Hub] Client disconnected")
}

// Broadcast - push v as JSON to every socket of clientID. Slow sockets are dropped.
func (h *Hub) Broadcast(clientID string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("❌ [Hub] Failed to marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[clientID] {
		select {
		case c.send <- payload:
		default:
			h.removeLocked(c)
		}
	}
}

// reply - send to one socket, if it is still registered
func (h *Hub) reply(c *wsClient, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.clientID][c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.removeLocked(c)
	}
}

// Connections - open sockets for clientID
func (h *Hub) Connections(clientID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[clientID])
}

// Close - drop every socket
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Str("client", c.clientID).Msg("⚠️ [Hub] WebSocket error")
			}
			return
		}

		if msg.Type == "ping" {
			c.hub.reply(c, wsMessage{Type: "pong"})
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.log.Warn().Err(err).Str("client", c.clientID).Msg("⚠️ [Hub] WebSocket write error")
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
