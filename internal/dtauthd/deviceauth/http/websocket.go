package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// connection is a middleman between one websocket peer and the hub.
type connection struct {
	principalID uuid.UUID
	ws          *websocket.Conn
	send        chan []byte
	hub         *Hub
	logger      *slog.Logger
}

func (c *connection) cleanup() {
	c.hub.unregister <- c

	if err := c.ws.Close(); err != nil {
		c.logger.Error("error closing websocket connection",
			"error", err,
			"principalId", c.principalID,
		)
	}
}

// readPump drains the peer. Clients only listen on this channel; inbound
// payloads are discarded, the pump exists to observe pongs and closure.
func (c *connection) readPump() {
	defer c.cleanup()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline",
			"error", err,
			"principalId", c.principalID,
		)
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("websocket read error",
					"error", err,
					"principalId", c.principalID,
				)
			}
			return
		}
	}
}

func (c *connection) write(mt int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(mt, payload)
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.logger.Error("failed to write message",
					"error", err,
					"principalId", c.principalID,
				)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

// notice pairs an owner with a serialized event for targeted delivery.
type notice struct {
	ownerID uuid.UUID
	payload []byte
}

// Hub maintains active connections grouped by principal and delivers device
// lifecycle events to the owner's open sessions.
type Hub struct {
	connections map[uuid.UUID]map[*connection]bool

	register   chan *connection
	unregister chan *connection
	notify     chan notice

	logger *slog.Logger
}

// NewHub creates a device event hub. Run must be started before the hub
// accepts connections or events.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]map[*connection]bool),
		register:    make(chan *connection),
		unregister:  make(chan *connection),
		notify:      make(chan notice, 64),
		logger:      logger,
	}
}

// Run processes hub events until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.connections {
				for c := range conns {
					close(c.send)
				}
			}
			return

		case c := <-h.register:
			if h.connections[c.principalID] == nil {
				h.connections[c.principalID] = make(map[*connection]bool)
			}
			h.connections[c.principalID][c] = true
			h.logger.Info("device event subscriber connected",
				"principalId", c.principalID,
				"connections", len(h.connections[c.principalID]),
			)

		case c := <-h.unregister:
			if conns, ok := h.connections[c.principalID]; ok {
				if _, ok := conns[c]; ok {
					delete(conns, c)
					close(c.send)
					if len(conns) == 0 {
						delete(h.connections, c.principalID)
					}
				}
			}

		case n := <-h.notify:
			for c := range h.connections[n.ownerID] {
				select {
				case c.send <- n.payload:
				default:
					// Slow consumer; drop it rather than block the hub.
					delete(h.connections[n.ownerID], c)
					close(c.send)
				}
			}
		}
	}
}

// Publish implements deviceauth.Publisher: events are serialized once and
// fanned out to the owner's connections. Delivery is best-effort.
func (h *Hub) Publish(event deviceauth.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode device event",
			"error", err,
			"type", event.Type,
		)
		return
	}

	select {
	case h.notify <- notice{ownerID: event.OwnerID, payload: payload}:
	default:
		h.logger.Warn("device event dropped, hub backlog full",
			"type", event.Type,
			"ownerId", event.OwnerID,
		)
	}
}

// ServeWebSocket upgrades an authenticated request to a websocket and
// streams the principal's device lifecycle events.
func (h *Handler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if h.hub == nil {
		http.Error(w, "events unavailable", http.StatusNotImplemented)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			"error", err,
			"principalId", principal.ID,
		)
		return
	}

	c := &connection{
		principalID: principal.ID,
		ws:          ws,
		send:        make(chan []byte, 16),
		hub:         h.hub,
		logger:      h.logger,
	}

	h.hub.register <- c
	go c.writePump()
	go c.readPump()
}
