package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/loop"
	"github.com/wricardo/driving-tour/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Hub events.
const (
	EventSnapshot     = "snapshot"
	EventStateUpdate  = "state_update"
	EventSessionError = "session_error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is pushed to every client watching a session.
type Message struct {
	SessionID string           `json:"session_id"`
	Snapshot  *engine.Snapshot `json:"snapshot,omitempty"`
	Event     string           `json:"event,omitempty"`
	Events    []engine.Event   `json:"events,omitempty"`
	Data      any              `json:"data,omitempty"`
}

// ClientMessage is what a client may send: held controls or a pause
// request. A pause without Paused toggles.
type ClientMessage struct {
	Type       string `json:"type"`
	Accelerate bool   `json:"accelerate"`
	Brake      bool   `json:"brake"`
	Paused     *bool  `json:"paused,omitempty"`
}

// LiveService is the part of the tour service the live loop drives.
type LiveService interface {
	SetInput(ctx context.Context, sessionID string, in engine.Input) error
	SetPaused(ctx context.Context, sessionID string, paused *bool) (*engine.Snapshot, error)
	Step(ctx context.Context, sessionID string, dt float64) (*service.StepResult, error)
}

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

// Hub maintains the set of active clients and broadcasts messages. With a
// LiveService it also runs one frame loop per watched session.
type Hub struct {
	log      *slog.Logger
	live     LiveService
	interval time.Duration

	// Registered clients by session ID
	sessions map[string]map[*Client]bool
	// Running frame loops by session ID
	runners map[string]context.CancelFunc

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	stopped    chan string
}

// Option configures a Hub.
type Option func(*Hub)

// WithLiveService drives a frame loop for every session with a watcher.
func WithLiveService(live LiveService) Option {
	return func(h *Hub) {
		h.live = live
	}
}

// WithFrameInterval sets the live loop tick.
func WithFrameInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.interval = d
		}
	}
}

// NewHub creates a new WebSocket hub
func NewHub(log *slog.Logger, opts ...Option) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		log:        log,
		interval:   loop.DefaultInterval,
		sessions:   make(map[string]map[*Client]bool),
		runners:    make(map[string]context.CancelFunc),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan string, 16),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the hub's event loop. It owns the client and runner maps and
// returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for id, cancel := range h.runners {
			cancel()
			delete(h.runners, id)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(ctx, client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case sessionID := <-h.stopped:
			if cancel, ok := h.runners[sessionID]; ok {
				cancel()
				delete(h.runners, sessionID)
			}
		}
	}
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// BroadcastToSession pushes a snapshot to all clients of a session.
func (h *Hub) BroadcastToSession(sessionID string, snap *engine.Snapshot, events ...engine.Event) {
	h.publish(&Message{
		SessionID: sessionID,
		Snapshot:  snap,
		Event:     EventStateUpdate,
		Events:    events,
	})
}

// SendSnapshot pushes the current frame to a session, typically right
// after a client connects.
func (h *Hub) SendSnapshot(sessionID string, snap *engine.Snapshot) {
	h.publish(&Message{
		SessionID: sessionID,
		Snapshot:  snap,
		Event:     EventSnapshot,
	})
}

// BroadcastEvent sends a custom event to all clients in a session
func (h *Hub) BroadcastEvent(sessionID string, event string, data any) {
	h.publish(&Message{
		SessionID: sessionID,
		Event:     event,
		Data:      data,
	})
}

// publish queues a message without blocking the caller. Messages are
// dropped when the queue is full.
func (h *Hub) publish(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("broadcast queue full, dropping message", "session", message.SessionID, "event", message.Event)
	}
}

// registerClient adds a client to a session and starts its frame loop
func (h *Hub) registerClient(ctx context.Context, client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	if h.live != nil {
		if _, running := h.runners[client.sessionID]; !running {
			runCtx, cancel := context.WithCancel(ctx)
			h.runners[client.sessionID] = cancel
			go h.runSession(runCtx, client.sessionID)
		}
	}

	h.log.Info("client registered", "session", client.sessionID, "clients", len(h.sessions[client.sessionID]))
}

// unregisterClient removes a client and stops the frame loop of an
// unwatched session
func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.sessions[client.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)

	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
		if cancel, ok := h.runners[client.sessionID]; ok {
			cancel()
			delete(h.runners, client.sessionID)
		}
	}

	h.log.Info("client unregistered", "session", client.sessionID, "clients", len(clients))
}

// broadcastMessage sends a message to all clients in a session
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to marshal broadcast message", "err", err)
		return
	}

	for client := range h.sessions[message.SessionID] {
		select {
		case client.send <- data:
		default:
			h.unregisterClient(client)
		}
	}
}

// clientCount is only safe to call from the hub loop or from tests once
// the loop is idle.
func (h *Hub) clientCount(sessionID string) int {
	return len(h.sessions[sessionID])
}

// handleClientMessage applies a message read from a client.
func (h *Hub) handleClientMessage(sessionID string, raw []byte) {
	if h.live == nil {
		return
	}
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.log.Debug("ignoring malformed client message", "session", sessionID, "err", err)
		return
	}

	ctx := context.Background()
	switch msg.Type {
	case "input":
		if err := h.live.SetInput(ctx, sessionID, engine.Input{Accelerate: msg.Accelerate, Brake: msg.Brake}); err != nil {
			h.log.Warn("failed to set input", "session", sessionID, "err", err)
		}
	case "pause":
		snap, err := h.live.SetPaused(ctx, sessionID, msg.Paused)
		if err != nil {
			h.log.Warn("failed to pause", "session", sessionID, "err", err)
			return
		}
		h.BroadcastToSession(sessionID, snap)
	default:
		h.log.Debug("ignoring client message", "session", sessionID, "type", msg.Type)
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket error", "session", c.sessionID, "err", err)
			}
			break
		}
		c.hub.handleClientMessage(c.sessionID, message)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
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
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame.
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
