package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SmitUplenchwar2687/Stall/internal/recorder"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for a local bench tool.
	},
}

// ChatHandler answers one chat frame. chat.Service implements it.
type ChatHandler interface {
	Handle(ctx context.Context, payload string) string
}

// Hub fans served operations out to /ws/events subscribers. Each client has
// its own writer goroutine; a client that falls behind loses events rather
// than stalling the request path.
type Hub struct {
	logger      *log.Logger
	connections prometheus.Gauge // optional

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger:  logger.WithPrefix("hub"),
		clients: make(map[*hubClient]struct{}),
	}
}

// HandleWebSocket upgrades the connection and subscribes it to events.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &hubClient{conn: conn, send: make(chan []byte, clientSendSize)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.connections != nil {
		h.connections.Inc()
	}
	h.mu.Unlock()

	go h.writeLoop(c)
	// Read loop keeps the connection alive and notices disconnects.
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) writeLoop(c *hubClient) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("websocket write failed", "err", err)
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.drop(c)
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *hubClient) {
	delete(h.clients, c)
	close(c.send)
	if h.connections != nil {
		h.connections.Dec()
	}
}

// Broadcast sends rec to every subscriber.
func (h *Hub) Broadcast(rec recorder.OpRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		h.logger.Error("marshal event", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("dropping event for slow subscriber")
		}
	}
}

// ClientCount returns the number of subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.drop(c)
	}
}

// handleChat serves /ws/chat: every text frame is routed through the chat
// handler and its reply is written back on the same connection.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.WSConnections.Inc()
		defer s.metrics.WSConnections.Dec()
	}
	s.logger.Debug("chat connected", "remote", r.RemoteAddr)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("chat read failed", "err", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		reply := s.chat.Handle(r.Context(), string(data))
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			s.logger.Debug("chat write failed", "err", err)
			return
		}
	}
}

