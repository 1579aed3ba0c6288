package handler

import (
	"errors"
	"net/http"

	"story-server/internal/models"
	"story-server/internal/storygraph"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (h *Handler) listStories(c *gin.Context) {
	cursor, limit, ok := pagination(c)
	if !ok {
		return
	}
	filter := models.StoryFilter{
		Tag:   c.Query("tag"),
		Query: c.Query("q"),
	}
	if raw := c.Query("author"); raw != "" {
		authorID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid author: must be a UUID"})
			return
		}
		filter.AuthorID = authorID
	}

	stories, next, err := h.browsing.ListStories(c.Request.Context(), filter, cursor, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PaginatedResponse[models.StorySummary]{Data: stories, NextCursor: next})
}

func (h *Handler) getStory(c *gin.Context) {
	storyID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	viewerID, _ := userIDFromContext(c)

	detail, err := h.browsing.GetStory(c.Request.Context(), storyID, viewerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) listTags(c *gin.Context) {
	tags, err := h.browsing.ListTags(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (h *Handler) publishStory(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var sub storygraph.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		bindError(c, err)
		return
	}

	storyID, err := h.publishing.Publish(c.Request.Context(), userID, sub)
	if err != nil {
		var vErr *storygraph.ValidationError
		if errors.As(err, &vErr) {
			submissionsRejectedTotal.Inc()
		}
		handleServiceError(c, err)
		return
	}

	storiesPublishedTotal.Inc()
	h.logger.Info("Story published via API", zap.String("storyID", storyID.String()), zap.String("userID", userID.String()))
	c.JSON(http.StatusCreated, models.IDResponse{ID: storyID.String()})
}

func (h *Handler) deleteStory(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	storyID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.publishing.Delete(c.Request.Context(), storyID, userID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) likeStory(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	storyID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.likes.Like(c.Request.Context(), userID, storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) unlikeStory(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	storyID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.likes.Unlike(c.Request.Context(), userID, storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
