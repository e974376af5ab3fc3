package feed

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// Handler upgrades requests to websocket subscriptions on a Hub.
type Handler struct {
	hub            *Hub
	originPatterns []string
}

// NewHandler creates a websocket handler. originPatterns follow
// websocket.AcceptOptions; "*" allows any origin.
func NewHandler(hub *Hub, originPatterns []string) *Handler {
	return &Handler{hub: hub, originPatterns: originPatterns}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Warn("Failed to accept feed WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed closed"); closeErr != nil {
			slog.Debug("Failed to close feed websocket", "error", closeErr)
		}
	}()

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	// Clients never send; CloseRead cancels ctx once they disconnect.
	ctx := ws.CloseRead(r.Context())
	h.outputLoop(ctx, ws, sub)
}

func (h *Handler) outputLoop(ctx context.Context, ws *websocket.Conn, sub *Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, ws, ev)
			cancel()
			if err != nil {
				slog.Debug("Feed write error", "error", err)
				return
			}
		}
	}
}
