// Package ws provides the live push channel. Connected clients subscribe by
// recipient key (their user id plus, for reviewers, their tier pool key) and
// receive fresh unread snapshots after committed transitions.
package ws

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/domain/entity"
	"github.com/medikos/caseflow/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from any origin; auth lives upstream
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan interface{}
	keys []string
}

// Hub fans pushes out to connected clients by recipient key. Delivery is
// fire-and-forget: a client whose send buffer is full is dropped and
// reconciles via the pull endpoint on reconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	logger  *zap.Logger
}

// NewHub creates a new push hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*client]struct{}),
		logger:  logger,
	}
}

// Push delivers a payload to every client subscribed to the recipient key.
// It never blocks the caller.
func (h *Hub) Push(recipient string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[recipient] {
		select {
		case c.send <- payload:
		default:
			// Slow client; it will be closed by its write pump
			h.logger.Warn("Dropping push to slow client", zap.String("recipient", recipient))
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range c.keys {
		if h.clients[key] == nil {
			h.clients[key] = make(map[*client]struct{})
		}
		h.clients[key][c] = struct{}{}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range c.keys {
		delete(h.clients[key], c)
		if len(h.clients[key]) == 0 {
			delete(h.clients, key)
		}
	}
}

// Handler upgrades GET /ws?user=&tier= to a websocket subscription
func (h *Hub) Handler(c *gin.Context) {
	userID := c.Query("user")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is required"})
		return
	}

	keys := []string{userID}
	if raw := c.Query("tier"); raw != "" {
		tier, err := strconv.Atoi(raw)
		if err != nil || utils.ValidateTier(tier) != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tier"})
			return
		}
		keys = append(keys, entity.PoolRecipient(tier))
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	cl := &client{
		conn: conn,
		send: make(chan interface{}, sendBufferSize),
		keys: keys,
	}
	h.register(cl)
	h.logger.Info("Websocket client connected", zap.Strings("keys", keys))

	go h.writePump(cl)
	go h.readPump(cl)
}

// writePump serializes outbound frames for one client
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames and detects disconnects
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Verify interface compliance
var _ port.Pusher = (*Hub)(nil)
