package handler

import (
	"net/http"

	"story-server/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listReviews(c *gin.Context) {
	storyID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	cursor, limit, ok := pagination(c)
	if !ok {
		return
	}
	reviews, next, err := h.reviews.ListReviews(c.Request.Context(), storyID, cursor, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PaginatedResponse[models.Review]{Data: reviews, NextCursor: next})
}

func (h *Handler) addReview(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	storyID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	review, err := h.reviews.AddReview(c.Request.Context(), userID, storyID, req.Rating, req.Text)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	reviewsCreatedTotal.Inc()
	c.JSON(http.StatusCreated, review)
}

func (h *Handler) deleteReview(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	reviewID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.reviews.DeleteReview(c.Request.Context(), reviewID, userID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
