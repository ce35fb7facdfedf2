package notifications

import (
	"context"
	"net/http"
	"sync"
	"time"

	"achievehub/internal/events"
	"achievehub/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Message is pushed to connected learners
type Message struct {
	Type   string                `json:"type"`
	Badges []models.AwardedBadge `json:"badges,omitempty"`
	SentAt time.Time             `json:"sentAt"`
}

// MessageBadgeAwarded announces newly earned badges
const MessageBadgeAwarded = "badge_awarded"

// Client is one websocket connection of a learner. A learner may have
// several open at once.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	send   chan Message
}

// Hub tracks open connections per user and fans messages out to them
type Hub struct {
	mu       sync.RWMutex
	clients  map[int64]map[*Client]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a hub. An empty allowedOrigins list accepts any origin.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

// ServeWS upgrades the request and keeps the connection registered until
// the peer goes away
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan Message, sendBuffer),
	}
	h.Register(client)

	go client.writePump()
	client.readPump()
}

// Register adds a client
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}

	h.logger.Debug("WebSocket client connected", zap.Int64("user_id", c.userID))
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}

	h.logger.Debug("WebSocket client disconnected", zap.Int64("user_id", c.userID))
}

// SendToUser queues msg on every connection of the user and returns how
// many accepted it. Slow connections drop the message.
func (h *Hub) SendToUser(userID int64, msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- msg:
			delivered++
		default:
			h.logger.Warn("WebSocket send buffer full, dropping message",
				zap.Int64("user_id", userID),
				zap.String("type", msg.Type),
			)
		}
	}
	return delivered
}

// Connections returns the number of open connections of a user
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// HandleBadgeAwarded pushes badge.awarded events to the learner
func (h *Hub) HandleBadgeAwarded(ctx context.Context, event *events.BadgeAwardedEvent) error {
	if len(event.Badges) == 0 {
		return nil
	}
	n := h.SendToUser(event.GetUserID(), Message{
		Type:   MessageBadgeAwarded,
		Badges: event.Badges,
		SentAt: event.GetTimestamp(),
	})
	h.logger.Debug("Pushed badge award",
		zap.Int64("user_id", event.GetUserID()),
		zap.Int("badges", len(event.Badges)),
		zap.Int("connections", n),
	)
	return nil
}

// Subscribe registers the hub on the bus
func (h *Hub) Subscribe(bus events.EventBus) error {
	return bus.Subscribe(events.TypeBadgeAwarded, events.NewTypedEventHandler("notifications.hub", h.HandleBadgeAwarded))
}

// Close drops every connection
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Client
	for _, conns := range h.clients {
		for c := range conns {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	for _, c := range all {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
}

// readPump only handles control frames; learners never send data
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("WebSocket read error", zap.Int64("user_id", c.userID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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
				c.hub.logger.Debug("WebSocket write failed", zap.Int64("user_id", c.userID), zap.Error(err))
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
