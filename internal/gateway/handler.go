package gateway

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eduline/chat-gateway/internal/config"
	"github.com/eduline/chat-gateway/internal/domain"
	"github.com/eduline/chat-gateway/internal/hub"
	"github.com/eduline/chat-gateway/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler owns the HTTP surface: the WebSocket endpoint and health.
type Handler struct {
	hub     *hub.Hub
	gateway *Gateway
	wsCfg   config.WebSocketConfig
}

func NewHandler(h *hub.Hub, gw *Gateway, wsCfg config.WebSocketConfig) *Handler {
	return &Handler{hub: h, gateway: gw, wsCfg: wsCfg}
}

// RegisterRoutes mounts the gateway endpoints on a gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/chat/ws", h.handleWebSocket)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func (h *Handler) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	userID, ok := resolveUserID(c)
	if !ok {
		// The handshake already succeeded at the HTTP layer, so the
		// refusal travels as an error frame before closing.
		client := hub.NewClient(uuid.New().String(), 0, h.hub, conn, h.wsCfg)
		client.SendFrame(domain.EventError, domain.NewErrorPayload(domain.ErrCodeAuthRequired, "authentication required"))
		go client.WritePump()
		close(client.Send)
		return
	}

	client := hub.NewClient(uuid.New().String(), userID, h.hub, conn, h.wsCfg)
	c.Set(log.FieldUserID, userID)
	c.Set(log.FieldConnID, client.ID)
	h.hub.Register(client)

	if err := h.gateway.HandleConnect(c.Request.Context(), client); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldConnID, client.ID).Msg("connect rejected")
		client.SendFrame(domain.EventError, domain.NewErrorPayload(domain.ErrCodeUnauthorized, "connection rejected"))
		go client.WritePump()
		h.hub.Unregister(client)
		return
	}

	go client.WritePump()
	go client.ReadPump(h.handleMessage, h.gateway.HandleDisconnect)
}

func (h *Handler) handleMessage(client *hub.Client, message []byte) {
	ctx := log.WithConnection(context.Background(), client.ID, client.UserID)
	h.gateway.HandleEvent(ctx, client, message)
}

// resolveUserID extracts the caller's identity from the handshake: a
// userId query parameter, or the user_id/sub claim of a bearer token.
// Token signatures are checked upstream at the edge; here the claims
// are only parsed.
func resolveUserID(c *gin.Context) (int64, bool) {
	if raw := c.Query("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil && id > 0 {
			return id, true
		}
		return 0, false
	}

	token := c.Query("token")
	if token == "" {
		auth := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
			token = auth[len(prefix):]
		}
	}
	if token == "" {
		return 0, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}

	return userIDFromClaims(claims)
}

func userIDFromClaims(claims jwt.MapClaims) (int64, bool) {
	switch v := claims["user_id"].(type) {
	case float64:
		if v > 0 {
			return int64(v), true
		}
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id, true
		}
	}

	if sub, ok := claims["sub"].(string); ok {
		if id, err := strconv.ParseInt(sub, 10, 64); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}
