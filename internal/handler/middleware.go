package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"story-server/internal/models"
	"story-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthMiddleware требует валидный Bearer access токен.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			h.logger.Debug("Authorization header missing or malformed")
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			handleServiceError(c, models.ErrUnauthorized)
			return
		}

		claims, err := h.auth.VerifyAccessToken(c.Request.Context(), tokenString)
		if err != nil {
			h.logger.Debug("Access token verification failed", zap.Error(err))
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			handleServiceError(c, err)
			return
		}

		tokenVerificationsTotal.WithLabelValues("success").Inc()
		c.Set(models.CtxKeyUserID, claims.UserID)
		c.Set(models.CtxKeyRoles, claims.Roles)
		c.Set(models.CtxKeyAccessUUID, claims.ID)
		c.Next()
	}
}

// OptionalAuthMiddleware кладет пользователя в контекст, если токен валиден, и
// пропускает запрос дальше в любом случае.
func (h *Handler) OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c); ok {
			if claims, err := h.auth.VerifyAccessToken(c.Request.Context(), tokenString); err == nil {
				c.Set(models.CtxKeyUserID, claims.UserID)
				c.Set(models.CtxKeyRoles, claims.Roles)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// userIDFromContext возвращает ID пользователя, положенный auth middleware.
func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get(models.CtxKeyUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := raw.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// mustUserID прерывает запрос с 401, если пользователя нет в контексте.
func mustUserID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := userIDFromContext(c)
	if !ok {
		zap.L().Error("User ID missing in context on protected route", zap.String("path", c.FullPath()))
		handleServiceError(c, models.ErrUnauthorized)
	}
	return id, ok
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    models.ErrCodeBadRequest,
			Message: fmt.Sprintf("Invalid %s: must be a UUID", name),
		})
		return uuid.Nil, false
	}
	return id, true
}

// pagination читает cursor и limit из query.
func pagination(c *gin.Context) (string, int, bool) {
	limit := utils.DefaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > utils.MaxPageLimit {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
				Code:    models.ErrCodeBadRequest,
				Message: fmt.Sprintf("limit must be an integer between 1 and %d", utils.MaxPageLimit),
			})
			return "", 0, false
		}
		limit = n
	}
	return c.Query("cursor"), limit, true
}
