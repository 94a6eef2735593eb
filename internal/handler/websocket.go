package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"bgref/internal/middleware"
)

// EventServer runs an upgraded connection until the peer leaves.
type EventServer interface {
	Serve(conn *websocket.Conn, walletID int64)
}

// EventsHandler upgrades authenticated requests to the live event stream.
type EventsHandler struct {
	hub      EventServer
	upgrader websocket.Upgrader
	logger   Logger
}

// NewEventsHandler creates an EventsHandler. An empty origin list accepts any
// origin.
func NewEventsHandler(hub EventServer, allowedOrigins []string, log Logger) *EventsHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		logger: log,
	}
}

// Serve handles GET /ws.
func (h *EventsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	walletID, ok := middleware.WalletIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", map[string]interface{}{
			"wallet_id": walletID,
			"error":     err.Error(),
		})
		return
	}

	h.logger.Info("WebSocket client connected", map[string]interface{}{"wallet_id": walletID})
	h.hub.Serve(conn, walletID)
}
