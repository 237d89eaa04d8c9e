package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	ws "github.com/isdelr/account-service/internal/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades admin connections to a live feed of account events.
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler that accepts the given origins.
// Requests without an Origin header (non-browser clients) are always accepted.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{BearerProtocol},
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Serve handles the WebSocket connection request.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn)
	if !h.hub.Subscribe(client) {
		conn.Close()
		return
	}

	if claims, ok := ClaimsFromContext(r.Context()); ok {
		log.Info().Str("email", claims.Email).Msg("Admin subscribed to event feed")
	}

	go client.WritePump()
	go client.ReadPump()
}
