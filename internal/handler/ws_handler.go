package handler

import (
	"log"
	"net/http"
	"strings"

	"notewire/internal/config"
	"notewire/internal/websocket"
	"notewire/pkg/jwt"
	"notewire/pkg/response"

	gorilla "github.com/gorilla/websocket"
	"github.com/google/uuid"
)

type WSHandler struct {
	manager   *websocket.Manager
	jwtSecret string
	upgrader  gorilla.Upgrader
}

func NewWSHandler(manager *websocket.Manager, jwtSecret string, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		manager:   manager,
		jwtSecret: jwtSecret,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handle upgrades a feed subscription. The token rides in the query string
// because browser websocket clients cannot set headers.
func (h *WSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		response.Unauthorized(w, "Missing token")
		return
	}

	claims, err := jwt.ValidateToken(token, h.jwtSecret)
	if err != nil {
		response.Unauthorized(w, "Invalid or expired token")
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	var collections []string
	if raw := r.URL.Query().Get("collection"); raw != "" {
		collections = strings.Split(raw, ",")
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), claims.UserID, deviceID, collections, conn, h.manager)
	h.manager.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
