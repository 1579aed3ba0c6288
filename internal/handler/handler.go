package handler

import (
	"story-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services - зависимости HTTP слоя.
type Services struct {
	Auth       service.AuthService
	Profile    service.ProfileService
	Publishing service.PublishingService
	Browsing   service.StoryBrowsingService
	Reviews    service.ReviewService
	Likes      service.LikeService
}

type Handler struct {
	auth       service.AuthService
	profile    service.ProfileService
	publishing service.PublishingService
	browsing   service.StoryBrowsingService
	reviews    service.ReviewService
	likes      service.LikeService
	logger     *zap.Logger
}

func NewHandler(s Services, logger *zap.Logger) *Handler {
	registerValidators()
	return &Handler{
		auth:       s.Auth,
		profile:    s.Profile,
		publishing: s.Publishing,
		browsing:   s.Browsing,
		reviews:    s.Reviews,
		likes:      s.Likes,
		logger:     logger.Named("Handler"),
	}
}

// RegisterRoutes регистрирует маршруты. authLimiter (может быть nil) вешается на группу /auth.
func (h *Handler) RegisterRoutes(router *gin.Engine, authLimiter gin.HandlerFunc) {
	authGroup := router.Group("/auth")
	if authLimiter != nil {
		authGroup.Use(authLimiter)
	}
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/refresh", h.refresh)
		authGroup.POST("/logout", h.AuthMiddleware(), h.logout)
	}

	public := router.Group("/api")
	public.Use(h.OptionalAuthMiddleware())
	{
		public.GET("/tags", h.listTags)
		public.GET("/users/:id", h.getPublicProfile)
		public.GET("/stories", h.listStories)
		public.GET("/stories/:id", h.getStory)
		public.GET("/stories/:id/reviews", h.listReviews)
	}

	protected := router.Group("/api")
	protected.Use(h.AuthMiddleware())
	{
		protected.GET("/me", h.getMe)
		protected.PUT("/me", h.updateMe)
		protected.GET("/me/likes", h.listLiked)

		protected.POST("/stories", h.publishStory)
		protected.DELETE("/stories/:id", h.deleteStory)
		protected.POST("/stories/:id/reviews", h.addReview)
		protected.DELETE("/reviews/:id", h.deleteReview)
		protected.POST("/stories/:id/like", h.likeStory)
		protected.DELETE("/stories/:id/like", h.unlikeStory)
	}
}
