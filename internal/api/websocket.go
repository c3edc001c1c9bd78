package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/airsentinel/airsentinel-core/internal/infrastructure/config"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/logging"
)

// Message types on the WebSocket protocol.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// ChannelOverrideDetected carries override events from the notifier. It is
// the only channel Core emits today; clients are subscribed to it on
// connect so a dashboard sees overrides without any handshake beyond the
// upgrade.
const ChannelOverrideDetected = "override.detected"

// wsSendBufferSize bounds the per-client outbound queue. A client that
// cannot drain this many messages is dropped-from, not waited-for.
const wsSendBufferSize = 256

// WSMessage is the frame exchanged with clients in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload lists channels in subscribe/unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans events out to connected WebSocket clients. Broadcasting never
// blocks on a slow client: each client has a bounded queue and overflow
// is dropped.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// WSClient is one upgraded connection with its channel subscriptions.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	mu            sync.RWMutex
	subscriptions map[string]struct{}
	subject       string // JWT subject of the authenticated caller
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS middleware ahead of the
	// upgrade, not here.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates an empty hub. Call Run to tie its lifetime to a context.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// Register adds a connected client.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client. Whichever caller actually removes it from
// the map closes the send channel, so Unregister racing with hub shutdown
// cannot double-close.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if present {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers a raw override event to every client subscribed to
// the override channel. This is the sink the notifier writes to.
func (h *Hub) Broadcast(payload []byte) {
	h.broadcast(ChannelOverrideDetected, json.RawMessage(payload))
}

func (h *Hub) broadcast(channel string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("marshalling broadcast frame", "channel", channel, "error", err)
		return
	}

	// Snapshot the client set, then deliver without the hub lock so a
	// stalled client cannot hold up registration.
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.subscribedTo(channel) {
			client.offer(frame)
		}
	}
}

// handleWebSocket upgrades the connection and starts the client pumps.
// Auth ran in the middleware; browsers pass the JWT as a "token" query
// parameter since they cannot set headers on an upgrade request.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	subject, _ := r.Context().Value(ctxKeySubject).(string)

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelOverrideDetected: {}},
		subject:       subject,
	}
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump consumes frames until the connection dies. Any inbound frame
// refreshes the read deadline, so clients that talk but never answer
// protocol pings still stay connected.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(deadline)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(deadline)) //nolint:errcheck
		c.dispatch(frame)
	}
}

// writePump drains the send queue and keeps the connection alive with
// protocol pings.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) dispatch(frame []byte) {
	var msg WSMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		if channels, ok := c.decodeChannels(msg); ok {
			c.mu.Lock()
			for _, ch := range channels {
				c.subscriptions[ch] = struct{}{}
			}
			c.mu.Unlock()
			c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"subscribed": channels})
		}
	case WSTypeUnsubscribe:
		if channels, ok := c.decodeChannels(msg); ok {
			c.mu.Lock()
			for _, ch := range channels {
				delete(c.subscriptions, ch)
			}
			c.mu.Unlock()
			c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
		}
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// decodeChannels extracts the channel list from a subscribe/unsubscribe
// payload, reporting a protocol error to the client on failure.
func (c *WSClient) decodeChannels(msg WSMessage) ([]string, bool) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return nil, false
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		c.sendError(msg.ID, "invalid payload")
		return nil, false
	}
	return sub.Channels, true
}

func (c *WSClient) subscribedTo(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// offer queues a frame without ever blocking: a full buffer drops the
// frame, a channel closed mid-broadcast is absorbed.
func (c *WSClient) offer(frame []byte) {
	defer func() { recover() }() //nolint:errcheck

	select {
	case c.send <- frame:
	default:
	}
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.offer(frame)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
