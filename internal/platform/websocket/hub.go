// Package websocket streams selection changes to dashboard clients. Each
// connected client gets the current selection on connect, then one event per
// SelectPatient call, and may itself select a patient by sending
// {"action":"select","id":"..."} when its connection carried a valid API key.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/neuhai/clinical-decision-making-dashboard/internal/domain/patient"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/platform/middleware"
)

// Event types sent to clients.
const (
	EventSelectionCurrent = "selection.current"
	EventSelectionChanged = "selection.changed"
)

// sendBuffer is the per-client queue length. A client that falls this far
// behind misses events until it drains.
const sendBuffer = 64

// Event is a selection notification.
type Event struct {
	Type        string           `json:"type"`
	RequestedID string           `json:"requestedId"`
	Patient     *patient.Patient `json:"patient"`
	Version     uint64           `json:"version"`
	Timestamp   time.Time        `json:"timestamp"`
}

// ClientMessage is an inbound message from a client.
type ClientMessage struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

// Selector is the part of patient.Store the hub uses.
type Selector interface {
	SelectPatient(id string)
	Snapshot() patient.Selection
	Subscribe(fn patient.Observer) (unsubscribe func())
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single WebSocket connection. A ReadOnly client
// receives events but cannot select.
type Client struct {
	ID       string
	Send     chan []byte
	ReadOnly bool
	conn     Conn
}

// NewClient returns a client with a buffered send queue.
func NewClient(conn Conn) *Client {
	return &Client{
		ID:   uuid.New().String(),
		Send: make(chan []byte, sendBuffer),
		conn: conn,
	}
}

// Hub tracks connected clients and fans selection events out to them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	selector Selector
	logger   zerolog.Logger
	stop     func()
	now      func() time.Time
}

// NewHub subscribes to selector; call Close to detach.
func NewHub(selector Selector, logger zerolog.Logger) *Hub {
	h := &Hub{
		clients:  make(map[*Client]struct{}),
		selector: selector,
		logger:   logger.With().Str("component", "selection_stream").Logger(),
		now:      time.Now,
	}
	h.stop = selector.Subscribe(h.onSelection)
	return h
}

func (h *Hub) onSelection(sel patient.Selection) {
	h.Broadcast(h.event(EventSelectionChanged, sel))
}

func (h *Hub) event(typ string, sel patient.Selection) Event {
	return Event{
		Type:        typ,
		RequestedID: sel.RequestedID,
		Patient:     sel.Patient,
		Version:     sel.Version,
		Timestamp:   h.now().UTC(),
	}
}

// Register adds a client and queues the current selection for it. The
// snapshot is taken under the hub lock, so no later change can reach the
// client ahead of it.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}

	data, err := json.Marshal(h.event(EventSelectionCurrent, h.selector.Snapshot()))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal current selection")
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
}

// ProcessMessage handles an inbound ClientMessage. Unknown actions are
// ignored.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "select":
		if client.ReadOnly {
			h.logger.Debug().Str("client_id", client.ID).Msg("select ignored, client has no API key")
			return
		}
		h.logger.Debug().Str("client_id", client.ID).Str("patient_id", msg.ID).Msg("select requested")
		h.selector.SelectPatient(msg.ID)
	}
}

// Broadcast sends an event to every connected client without blocking.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn().Str("client_id", client.ID).Msg("client buffer full, event dropped")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close detaches the hub from the store and disconnects every client.
func (h *Hub) Close() {
	h.stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// Handler upgrades HTTP requests to WebSocket connections on the hub.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
}

// NewHandler accepts connections whose Origin is in origins. An empty list
// or "*" allows any origin.
func NewHandler(hub *Hub, origins []string) *Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (wsh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wsh.HandleConnect)
}

// HandleConnect upgrades the connection, registers the client and starts
// the read and write pumps.
func (wsh *Handler) HandleConnect(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(&gorillaConnAdapter{ws})
	client.ReadOnly = !middleware.APIKeyGranted(c)
	wsh.hub.Register(client)
	wsh.hub.logger.Info().Str("client_id", client.ID).Str("remote_ip", c.RealIP()).Msg("client connected")

	go wsh.writePump(client)
	go wsh.readPump(client)

	return nil
}

// readPump reads messages from the connection until it fails.
func (wsh *Handler) readPump(client *Client) {
	defer func() {
		wsh.hub.Unregister(client)
		client.conn.Close()
		wsh.hub.logger.Info().Str("client_id", client.ID).Msg("client disconnected")
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		wsh.hub.ProcessMessage(client, msg)
	}
}

// writePump writes queued messages until Send is closed.
func (wsh *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy the Conn interface.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
