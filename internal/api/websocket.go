package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/sensorhub/internal/infrastructure/config"
	"github.com/nerrad567/sensorhub/internal/infrastructure/logging"
)

// Frame types on the live feed.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// WSChannelAll matches every channel: readings, alerts and device events.
	WSChannelAll = "*"

	// wsSendBufferSize is how many frames a dashboard may fall behind
	// before new events are dropped for it.
	wsSendBufferSize = 256
)

// WSMessage is one frame on the live feed, in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload names the channels of a subscribe or unsubscribe frame.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS middleware has already vetted the origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans live events out to connected dashboards.
//
// The ingestor publishes sensor.reading and sensor.alert, the dispatcher
// device.command and the reconciler device.state_changed; each is
// delivered to clients subscribed to that channel or to "*". A slow
// dashboard misses events rather than stalling ingestion.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one dashboard connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	channels map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx ends, then disconnects every dashboard.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register adds a connected dashboard.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("dashboard connected", "clients", n)
}

// Unregister drops a dashboard. Whoever removes it from the map closes
// its send channel, so shutdown and a disconnect cannot both close it.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		close(c.send)
	}
	h.logger.Debug("dashboard disconnected", "clients", n)
}

// Broadcast sends payload as an event on channel. It never blocks.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding live event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(channel) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.push(frame)
	}
	if len(targets) > 0 {
		h.logger.Debug("live event sent", "channel", channel, "recipients", len(targets))
	}
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket upgrades GET /api/ws. Channels in the repeatable
// "channels" query parameter are subscribed before the first event.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
	}
	c.setChannels(r.URL.Query()["channels"], true)

	s.hub.Register(c)
	go c.writeLoop(s.wsCfg)
	go c.readLoop(s.wsCfg)
}

// readLoop handles control frames until the dashboard goes away.
func (c *WSClient) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	idle := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend() //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		// Some browsers never answer protocol pings; any frame keeps the link.
		extend() //nolint:errcheck // see above
		c.handleFrame(data)
	}
}

// writeLoop drains the send queue and keeps the link alive with pings.
func (c *WSClient) writeLoop(cfg config.WebSocketConfig) {
	ping := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write reports it
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame answers one client frame.
func (c *WSClient) handleFrame(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.handleSubscription(msg)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

func (c *WSClient) handleSubscription(msg WSMessage) {
	var sub WSSubscribePayload
	raw, err := json.Marshal(msg.Payload)
	if err == nil {
		err = json.Unmarshal(raw, &sub)
	}
	if err != nil {
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "invalid " + msg.Type + " payload"})
		return
	}

	subscribe := msg.Type == WSTypeSubscribe
	c.setChannels(sub.Channels, subscribe)

	key := "unsubscribed"
	if subscribe {
		key = "subscribed"
	}
	c.reply(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

func (c *WSClient) setChannels(channels []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if on {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
}

func (c *WSClient) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, all := c.channels[WSChannelAll]
	_, one := c.channels[channel]
	return all || one
}

// push queues a frame, dropping it when the queue is full or the client
// has just been unregistered.
func (c *WSClient) push(frame []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a channel closed by Unregister
	}()
	select {
	case c.send <- frame:
	default:
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.push(frame)
}
