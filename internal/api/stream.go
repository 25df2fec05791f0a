package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const streamWriteTimeout = 5 * time.Second

// Hub tracks open state streams and wakes them when the app state changes.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]chan struct{}
	nextID  int64
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[int64]chan struct{}), logger: logger}
}

// Register adds a stream and returns its wake channel and id.
// Wakes coalesce: a slow stream sees at most one pending signal.
func (h *Hub) Register() (int64, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan struct{}, 1)
	h.clients[id] = ch
	h.logger.Debug("state stream registered", "stream_id", id, "streams", len(h.clients))
	return id, ch
}

// Unregister removes a stream.
func (h *Hub) Unregister(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		h.logger.Debug("state stream unregistered", "stream_id", id, "streams", len(h.clients))
	}
}

// Len returns the number of open streams.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast wakes every stream without blocking.
func (h *Hub) Broadcast() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// HandleStream upgrades to a websocket and pushes the view (filtered by ?q=)
// once on connect and again after every change.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		Error(w, http.StatusForbidden, "origin_not_allowed", "origin not allowed")
		return
	}

	// Origin was checked above against the configured list.
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = ws.Close(websocket.StatusNormalClosure, "stream ended")
	}()

	query := r.URL.Query().Get("q")
	id, wake := h.hub.Register()
	defer h.hub.Unregister(id)

	// The client never sends frames; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx := ws.CloseRead(r.Context())

	if err := h.pushView(ctx, ws, query); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			if err := h.pushView(ctx, ws, query); err != nil {
				h.logger.Debug("state stream write failed", "stream_id", id, "error", err)
				return
			}
		}
	}
}

func (h *Handler) pushView(ctx context.Context, ws *websocket.Conn, query string) error {
	data, err := json.Marshal(h.app.View(ctx, query))
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}

// checkOrigin allows requests without an Origin header (non-browser clients),
// a "*" entry, or an exact match.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	h.logger.Warn("state stream origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}
