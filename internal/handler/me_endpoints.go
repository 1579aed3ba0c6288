package handler

import (
	"net/http"

	"story-server/internal/models"

	"github.com/gin-gonic/gin"
)

func toMeResponse(u *models.User) meResponse {
	return meResponse{
		ID:          u.ID.String(),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Signature:   u.Signature,
		AvatarURL:   u.AvatarURL,
		Roles:       u.Roles,
	}
}

func (h *Handler) getMe(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	user, err := h.profile.GetProfile(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMeResponse(user))
}

func (h *Handler) updateMe(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.profile.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMeResponse(user))
}

func (h *Handler) getPublicProfile(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	profile, err := h.profile.GetPublicProfile(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) listLiked(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	cursor, limit, ok := pagination(c)
	if !ok {
		return
	}
	stories, next, err := h.likes.ListLiked(c.Request.Context(), userID, cursor, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PaginatedResponse[models.StorySummary]{Data: stories, NextCursor: next})
}
