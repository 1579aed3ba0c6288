package service

import (
	"context"

	"story-server/internal/models"
	"story-server/internal/storygraph"

	"github.com/google/uuid"
)

// AuthService defines the interface for authentication and authorization logic.
type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.TokenDetails, error)
	// Logout отзывает access UUID и, если передан, refresh токен.
	Logout(ctx context.Context, userID uuid.UUID, accessUUID, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error)
	VerifyAccessToken(ctx context.Context, tokenString string) (*models.Claims, error)
}

// ProfileService управляет профилем пользователя.
type ProfileService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetPublicProfile(ctx context.Context, userID uuid.UUID) (*models.PublicProfile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update models.ProfileUpdate) (*models.User, error)
}

// PublishingService принимает черновики на публикацию и удаляет опубликованные истории.
type PublishingService interface {
	// Publish проверяет черновик, переводит индексы выборов в ID страниц и сохраняет историю.
	// Возвращает *storygraph.ValidationError, если черновик не прошел проверку.
	Publish(ctx context.Context, authorID uuid.UUID, sub storygraph.Submission) (uuid.UUID, error)
	Delete(ctx context.Context, storyID, userID uuid.UUID) error
}

// StoryBrowsingService отдает каталог и полные истории для чтения.
type StoryBrowsingService interface {
	ListStories(ctx context.Context, filter models.StoryFilter, cursor string, limit int) ([]models.StorySummary, string, error)
	// GetStory возвращает граф истории; IsLiked заполняется, если viewerID не uuid.Nil.
	GetStory(ctx context.Context, storyID, viewerID uuid.UUID) (*models.StoryDetail, error)
	ListTags(ctx context.Context) ([]models.TagCount, error)
}

// ReviewService управляет отзывами к историям.
type ReviewService interface {
	AddReview(ctx context.Context, userID, storyID uuid.UUID, rating int, text string) (*models.Review, error)
	ListReviews(ctx context.Context, storyID uuid.UUID, cursor string, limit int) ([]models.Review, string, error)
	DeleteReview(ctx context.Context, reviewID, userID uuid.UUID) error
}

// LikeService defines the interface for managing story likes.
type LikeService interface {
	Like(ctx context.Context, userID, storyID uuid.UUID) error
	Unlike(ctx context.Context, userID, storyID uuid.UUID) error
	ListLiked(ctx context.Context, userID uuid.UUID, cursor string, limit int) ([]models.StorySummary, string, error)
}
