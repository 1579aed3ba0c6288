package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"story-server/internal/interfaces"
	"story-server/internal/models"
	"story-server/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type reviewServiceImpl struct {
	reviewRepo interfaces.ReviewRepository
	storyRepo  interfaces.StoryRepository
	events     eventNotifier
	logger     *zap.Logger
}

// NewReviewService создает сервис отзывов.
func NewReviewService(
	reviewRepo interfaces.ReviewRepository,
	storyRepo interfaces.StoryRepository,
	publisher interfaces.StoryEventPublisher,
	broadcaster interfaces.Broadcaster,
	logger *zap.Logger,
) ReviewService {
	log := logger.Named("ReviewService")
	return &reviewServiceImpl{
		reviewRepo: reviewRepo,
		storyRepo:  storyRepo,
		events:     eventNotifier{publisher: publisher, broadcaster: broadcaster, logger: log},
		logger:     log,
	}
}

func (s *reviewServiceImpl) AddReview(ctx context.Context, userID, storyID uuid.UUID, rating int, text string) (*models.Review, error) {
	logFields := []zap.Field{zap.String("userID", userID.String()), zap.String("storyID", storyID.String())}

	if rating < models.MinRating || rating > models.MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", models.ErrInvalidInput, models.MinRating, models.MaxRating)
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > models.MaxReviewLength {
		return nil, fmt.Errorf("%w: review must be at most %d characters", models.ErrInvalidInput, models.MaxReviewLength)
	}

	authorID, err := s.storyRepo.GetAuthorID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if authorID == userID {
		s.logger.Warn("Author tried to review own story", logFields...)
		return nil, models.ErrCannotReviewOwn
	}

	review := &models.Review{StoryID: storyID, UserID: userID, Rating: rating, Text: text}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, err
	}
	if full, err := s.reviewRepo.GetByID(ctx, review.ID); err == nil {
		review = full
	} else {
		s.logger.Warn("Failed to reload created review", append(logFields, zap.Error(err))...)
	}

	s.events.notify(ctx, models.StoryEvent{
		Type:    models.EventStoryReviewed,
		StoryID: storyID,
		UserID:  userID,
		Rating:  rating,
	})
	s.logger.Info("Review added", append(logFields, zap.Int("rating", rating))...)
	return review, nil
}

func (s *reviewServiceImpl) ListReviews(ctx context.Context, storyID uuid.UUID, cursor string, limit int) ([]models.Review, string, error) {
	if _, err := s.storyRepo.GetAuthorID(ctx, storyID); err != nil {
		return nil, "", err
	}
	reviews, next, err := s.reviewRepo.ListByStory(ctx, storyID, cursor, utils.SanitizeLimit(limit))
	if err != nil {
		return nil, "", err
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, next, nil
}

// DeleteReview удаляет отзыв; удалить может только его автор.
func (s *reviewServiceImpl) DeleteReview(ctx context.Context, reviewID, userID uuid.UUID) error {
	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.UserID != userID {
		s.logger.Warn("Review delete attempt by non-owner", zap.String("reviewID", reviewID.String()), zap.String("userID", userID.String()))
		return models.ErrForbidden
	}
	return s.reviewRepo.Delete(ctx, reviewID)
}
