package interfaces

import (
	"context"

	"story-server/internal/models"
	"story-server/internal/storygraph"

	"github.com/google/uuid"
)

// UserRepository определяет методы для работы с пользователями.
//
//go:generate mockery --name UserRepository --output ./mocks --outpkg mocks --case=underscore
type UserRepository interface {
	// CreateUser сохраняет пользователя. Возвращает models.ErrUserAlreadyExists
	// или models.ErrEmailAlreadyExists при нарушении уникальности.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateProfile применяет непустые поля update и возвращает обновленного пользователя.
	UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) (*models.User, error)
}

// TokenRepository хранит активные access/refresh UUID.
//
//go:generate mockery --name TokenRepository --output ./mocks --outpkg mocks --case=underscore
type TokenRepository interface {
	SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error
	DeleteTokens(ctx context.Context, userID uuid.UUID, accessUUID, refreshUUID string) (int64, error)
	GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error)
	GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error)
}

// StoryRepository хранит опубликованные истории вместе со страницами и выборами.
//
//go:generate mockery --name StoryRepository --output ./mocks --outpkg mocks --case=underscore
type StoryRepository interface {
	// Create сохраняет историю, теги, страницы и выборы в одной транзакции.
	Create(ctx context.Context, story *storygraph.Story) error
	// GetByID возвращает полный граф истории. models.ErrStoryNotFound, если нет.
	GetByID(ctx context.Context, id uuid.UUID) (*models.StoryDetail, error)
	// List возвращает страницу каталога и курсор следующей страницы.
	List(ctx context.Context, filter models.StoryFilter, cursor string, limit int) ([]models.StorySummary, string, error)
	// ListByIDs возвращает сводки в порядке переданных ID.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.StorySummary, error)
	// Delete удаляет историю автора. models.ErrStoryNotFound, если нет строки с таким id и author_id.
	Delete(ctx context.Context, id, authorID uuid.UUID) error
	GetAuthorID(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListTags(ctx context.Context) ([]models.TagCount, error)
}

// ReviewRepository хранит отзывы и поддерживает агрегаты рейтинга истории.
//
//go:generate mockery --name ReviewRepository --output ./mocks --outpkg mocks --case=underscore
type ReviewRepository interface {
	// Create сохраняет отзыв и пересчитывает rating_avg/reviews_count истории.
	// models.ErrAlreadyReviewed при повторном отзыве, models.ErrStoryNotFound при отсутствии истории.
	Create(ctx context.Context, review *models.Review) error
	ListByStory(ctx context.Context, storyID uuid.UUID, cursor string, limit int) ([]models.Review, string, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	// Delete удаляет отзыв и пересчитывает агрегаты.
	Delete(ctx context.Context, id uuid.UUID) error
}

// LikeRepository определяет методы для работы с лайками к опубликованным историям.
//
//go:generate mockery --name LikeRepository --output ./mocks --outpkg mocks --case=underscore
type LikeRepository interface {
	// AddLike возвращает models.ErrLikeAlreadyExists, если лайк уже есть.
	AddLike(ctx context.Context, userID, storyID uuid.UUID) error
	// RemoveLike возвращает models.ErrLikeNotFound, если лайка не было.
	RemoveLike(ctx context.Context, userID, storyID uuid.UUID) error
	CheckLike(ctx context.Context, userID, storyID uuid.UUID) (bool, error)
	ListLikedStoryIDs(ctx context.Context, userID uuid.UUID, cursor string, limit int) ([]uuid.UUID, string, error)
}
