// Package live keeps the websocket sessions of connected users and pushes JSON frames to them.
// A user counts as online while at least one session is attached.
package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Frame is the wire envelope for both directions.
type Frame struct {
	Destination string          `json:"destination"`
	Payload     json.RawMessage `json:"payload"`
}

type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]map[string]*Connection // user -> connection id -> connection
}

// NewHub builds a hub. An empty allowedOrigins list accepts same-host origins only.
func NewHub(logger *slog.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger: logger,
		conns:  make(map[string]map[string]*Connection),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}

// Serve upgrades the request and blocks until the session ends. Inbound text frames are
// decoded and passed to onFrame.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string, onFrame func(Frame)) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	conn := newConnection(userID, ws)
	h.Attach(conn)
	defer h.Detach(conn)

	err = conn.readLoop(func(data []byte) {
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			h.logger.Warn("ws bad frame", "user_id", userID, "err", err)
			return
		}
		if onFrame != nil {
			onFrame(f)
		}
	})
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		h.logger.Debug("ws closed", "user_id", userID, "err", err)
	}
	return nil
}

// Attach registers conn and starts its writer.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	set := h.conns[conn.UserID]
	if set == nil {
		set = make(map[string]*Connection)
		h.conns[conn.UserID] = set
	}
	set[conn.ID] = conn
	h.mu.Unlock()

	go conn.writeLoop()
	h.logger.Debug("ws attached", "user_id", conn.UserID, "conn_id", conn.ID)
}

func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	if set := h.conns[conn.UserID]; set != nil {
		delete(set, conn.ID)
		if len(set) == 0 {
			delete(h.conns, conn.UserID)
		}
	}
	h.mu.Unlock()

	conn.Close(websocket.CloseNormalClosure, "")
	h.logger.Debug("ws detached", "user_id", conn.UserID, "conn_id", conn.ID)
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// Push sends payload to every session of userID. Pushing to an offline user is a no-op.
func (h *Hub) Push(userID, destination string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	frame, err := json.Marshal(Frame{Destination: destination, Payload: body})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.conns[userID]))
	for _, c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var errs []error
	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			errs = append(errs, fmt.Errorf("conn %s: %w", c.ID, err))
		}
	}
	if len(errs) > 0 && len(errs) == len(targets) {
		return errors.Join(errs...)
	}
	return nil
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Connection
	for _, set := range h.conns {
		for _, c := range set {
			all = append(all, c)
		}
	}
	h.conns = make(map[string]map[string]*Connection)
	h.mu.Unlock()

	for _, c := range all {
		c.Close(websocket.CloseGoingAway, "server shutdown")
	}
}
