// Package ws pushes live comment activity to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsedelta/backend/internal/domain"
	"github.com/pulsedelta/backend/internal/metrics"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256

	// resubscribeDelay is the pause before re-subscribing after the bus
	// subscription drops.
	resubscribeDelay = 5 * time.Second

	// maxSubscriptions caps the channels one client may follow.
	maxSubscriptions = 64
)

// feedPattern is the bus subscription carrying every comment feed.
var feedPattern = domain.CommentChannel("*")

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool // subscribed channels
	mu   sync.RWMutex
}

// subscribeMsg is the JSON message a client sends to manage subscriptions,
// e.g. {"action":"subscribe","channels":["comments:0xabc..."]}.
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// ackMsg confirms a subscription change and lists the current channels.
type ackMsg struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

// Hub manages a set of connected WebSocket clients and fans comment events
// from the signal bus out to the clients subscribed to each market.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan domain.Message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	upgrader   websocket.Upgrader
	metrics    *metrics.Metrics
	mu         sync.RWMutex
	logger     *slog.Logger
	startedAt  time.Time
}

// Config configures a Hub.
type Config struct {
	// CheckOrigin decides whether an upgrade request is accepted. Nil
	// accepts every origin.
	CheckOrigin func(r *http.Request) bool
	Metrics     *metrics.Metrics
	StartedAt   time.Time
}

// NewHub creates a new WebSocket hub that bridges a SignalBus to connected
// WebSocket clients.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan domain.Message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		metrics:   cfg.Metrics,
		logger:    logger,
		startedAt: startedAt,
	}
}

// Run starts the hub's main event loop. The comment feed subscription is in
// place before the first client is registered. The loop exits when ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	msgCh, err := h.bus.Subscribe(ctx, feedPattern)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", feedPattern),
			slog.String("error", err.Error()),
		)
	}
	go h.forward(ctx, msgCh)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.metrics.SetWSClients(0)
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetWSClients(n)
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetWSClients(n)
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if c.isSubscribed(msg.Channel) {
					select {
					case c.send <- msg.Payload:
					default:
						// Client's send buffer is full; drop the message.
						h.logger.Warn("ws: dropping message for slow client",
							slog.String("channel", msg.Channel),
						)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// forward relays bus deliveries to the broadcast loop, re-subscribing when
// the subscription drops. msgCh may be nil after a failed first attempt.
func (h *Hub) forward(ctx context.Context, msgCh <-chan domain.Message) {
	for {
		if msgCh != nil {
			h.logger.Info("ws: subscribed to channel", slog.String("channel", feedPattern))
			h.relay(ctx, msgCh)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}

		var err error
		msgCh, err = h.bus.Subscribe(ctx, feedPattern)
		if err != nil {
			h.logger.Error("ws: failed to subscribe to channel",
				slog.String("channel", feedPattern),
				slog.String("error", err.Error()),
			)
			msgCh = nil
		}
	}
}

func (h *Hub) relay(ctx context.Context, msgCh <-chan domain.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				if ctx.Err() == nil {
					h.logger.Warn("ws: channel subscription closed",
						slog.String("channel", feedPattern),
					)
				}
				return
			}
			select {
			case h.broadcast <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub. A market query parameter subscribes the client
// to that market's comments straight away.
// GET /ws?market=0x...
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}
	if market := r.URL.Query().Get("market"); market != "" {
		c.subs[channelName(market)] = true
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	c.sendInitialStatus()

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// channelName normalises a subscription request. A bare market id maps to
// its comment channel; market ids are matched case-insensitively.
func channelName(raw string) string {
	ch := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(ch, "comments:") {
		ch = domain.CommentChannel(ch)
	}
	return ch
}

// readPump reads subscription management messages from the connection.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if jsonErr := json.Unmarshal(message, &sub); jsonErr != nil || sub.Action == "" {
			continue
		}
		c.handleSubscription(sub)
	}
}

// handleSubscription processes subscribe/unsubscribe requests from the
// client and acknowledges the resulting channel set.
func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	switch msg.Action {
	case "subscribe":
		for _, ch := range msg.Channels {
			if len(c.subs) >= maxSubscriptions {
				break
			}
			c.subs[channelName(ch)] = true
		}
	case "unsubscribe":
		for _, ch := range msg.Channels {
			delete(c.subs, channelName(ch))
		}
	}
	channels := make([]string, 0, len(c.subs))
	for ch := range c.subs {
		channels = append(channels, ch)
	}
	c.mu.Unlock()

	c.enqueue(ackMsg{Type: "subscribed", Channels: channels})
}

// sendInitialStatus pushes a small JSON envelope so clients can immediately
// mark the connection as healthy even when no comments are flowing yet.
func (c *client) sendInitialStatus() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	c.enqueue(map[string]any{
		"type": "connected",
		"payload": map[string]any{
			"uptime_seconds": uptime,
			"feed":           feedPattern,
		},
	})
}

// enqueue marshals v onto the client's send buffer, dropping it when full.
// The send channel may already be closed by a hub shutdown.
func (c *client) enqueue(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	defer func() { _ = recover() }()
	select {
	case c.send <- msg:
	default:
	}
}

// isSubscribed checks whether the client is subscribed to the given channel.
func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[strings.ToLower(channel)]
}

// writePump pumps messages from the hub to the WebSocket connection as text
// frames and sends periodic pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
