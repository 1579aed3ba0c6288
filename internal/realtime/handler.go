package realtime

import (
	"context"
	"net/http"
	"slices"

	"story-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenVerifier проверяет access токен из query параметра.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, tokenString string) (*models.Claims, error)
}

// Handler поднимает websocket соединения для хаба.
type Handler struct {
	hub      *Hub
	verifier TokenVerifier
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler создает обработчик /ws. Пустой allowedOrigins разрешает любой Origin.
func NewHandler(hub *Hub, verifier TokenVerifier, allowedOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
		logger: logger.Named("RealtimeHandler"),
	}
}

// ServeWS проверяет токен из ?token= и регистрирует клиента в хабе.
func (h *Handler) ServeWS(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Missing token"})
		return
	}
	claims, err := h.verifier.VerifyAccessToken(c.Request.Context(), tokenString)
	if err != nil {
		h.logger.Debug("WebSocket token rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeTokenInvalid, Message: "Token is invalid or expired"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader уже ответил клиенту
		h.logger.Warn("Failed to upgrade connection", zap.String("userID", claims.UserID.String()), zap.Error(err))
		return
	}

	cl := &client{
		userID: claims.UserID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	select {
	case h.hub.register <- cl:
	case <-h.hub.done:
		_ = conn.Close()
		return
	}
	h.logger.Info("WebSocket connection established", zap.String("userID", claims.UserID.String()))

	go cl.writePump(h.hub)
	go cl.readPump(h.hub)
}
