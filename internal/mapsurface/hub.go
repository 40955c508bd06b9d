package mapsurface

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fleetconsole.org/livemap/internal/geofence"
	"fleetconsole.org/livemap/internal/livetrack"
	"fleetconsole.org/livemap/internal/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 8
)

// ZoneLister is the read side of the geofence cache.
type ZoneLister interface {
	List() []geofence.Zone
}

// DrawFunc persists a validated draw gesture.
type DrawFunc func(ctx context.Context, zone geofence.Zone) (geofence.Zone, error)

// Message is the envelope for everything on the socket. Clients receive
// "frame", "zone" and "error"; they send "draw".
type Message struct {
	Type        string              `json:"type"`
	Frame       *Frame              `json:"frame,omitempty"`
	Zone        *geofence.Zone      `json:"zone,omitempty"`
	Draw        *DrawEvent          `json:"draw,omitempty"`
	Error       string              `json:"error,omitempty"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
}

// Hub mounts one live view per WebSocket connection and streams a frame to
// it after every accepted poll cycle. The view is unmounted when the
// connection goes away.
type Hub struct {
	tracker *livetrack.Manager
	zones   ZoneLister
	onDraw  DrawFunc
	logger  *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewHub(tracker *livetrack.Manager, zones ZoneLister, onDraw DrawFunc, allowedOrigin string, logger *slog.Logger) *Hub {
	return &Hub{
		tracker: tracker,
		zones:   zones,
		onDraw:  onDraw,
		logger:  logging.Component(logger, "mapsurface"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		clients: make(map[string]*client),
	}
}

func originChecker(allowed string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" || allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LogError(h.logger, "websocket upgrade failed", err)
		return
	}

	c := &client{
		id:   "ws-" + uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c.id] = c
	h.mu.Unlock()

	// Zones first so the map can draw overlays before the first cycle lands.
	h.enqueue(c, Message{Type: "frame", Frame: &Frame{
		ViewID:  c.id,
		At:      time.Now(),
		Markers: []Marker{},
		Trails:  []Trail{},
		Shapes:  ShapesFor(h.listZones()),
	}})

	if _, err := h.tracker.Mount(c.id, h.listenerFor(c)); err != nil {
		logging.LogError(h.logger, "failed to mount view", err, slog.String("view_id", c.id))
		h.disconnect(c)
		return
	}

	logging.LogOperation(h.logger, "client_connected",
		slog.String("view_id", c.id),
		slog.String("remote_addr", r.RemoteAddr))

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) listZones() []geofence.Zone {
	if h.zones == nil {
		return nil
	}
	return h.zones.List()
}

// listenerFor never blocks: a client that cannot keep up loses frames, and
// the next frame carries the full state anyway.
func (h *Hub) listenerFor(c *client) livetrack.Listener {
	return func(u livetrack.Update) {
		frame := BuildFrame(u, h.listZones())
		h.enqueue(c, Message{Type: "frame", Frame: &frame})
	}
}

func (h *Hub) enqueue(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.LogError(h.logger, "failed to encode message", err, slog.String("view_id", c.id))
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		h.logger.Debug("client_frame_dropped", slog.String("view_id", c.id))
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.disconnect(c)
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer h.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.LogError(h.logger, "websocket read failed", err, slog.String("view_id", c.id))
			}
			return
		}
		h.handleMessage(c, data)
	}
}

func (h *Hub) handleMessage(c *client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.enqueue(c, Message{Type: "error", Error: "malformed message"})
		return
	}
	if msg.Type != "draw" || msg.Draw == nil {
		h.enqueue(c, Message{Type: "error", Error: "unsupported message type"})
		return
	}
	if h.onDraw == nil {
		h.enqueue(c, Message{Type: "error", Error: "drawing is disabled"})
		return
	}
	if fieldErrors := msg.Draw.Validate(); len(fieldErrors) > 0 {
		h.enqueue(c, Message{Type: "error", Error: "invalid draw", FieldErrors: fieldErrors})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	zone, err := h.onDraw(ctx, msg.Draw.Zone())
	if err != nil {
		logging.LogError(h.logger, "failed to save drawn zone", err, slog.String("view_id", c.id))
		h.enqueue(c, Message{Type: "error", Error: "could not save zone"})
		return
	}
	h.enqueue(c, Message{Type: "zone", Zone: &zone})
}

// disconnect is safe to call from either pump; only the first call does
// anything.
func (h *Hub) disconnect(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()

		h.tracker.Unmount(c.id)
		close(c.done)
		_ = c.conn.Close()

		logging.LogOperation(h.logger, "client_disconnected", slog.String("view_id", c.id))
	})
}

// Shutdown closes every connection and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.disconnect(c)
	}
}
