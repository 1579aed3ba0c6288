package service

import (
	"context"
	"errors"

	"story-server/internal/interfaces"
	"story-server/internal/models"
	"story-server/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type likeServiceImpl struct {
	likeRepo  interfaces.LikeRepository
	storyRepo interfaces.StoryRepository
	events    eventNotifier
	logger    *zap.Logger
}

// NewLikeService creates a new instance of LikeService.
func NewLikeService(
	likeRepo interfaces.LikeRepository,
	storyRepo interfaces.StoryRepository,
	broadcaster interfaces.Broadcaster,
	logger *zap.Logger,
) LikeService {
	log := logger.Named("LikeService")
	return &likeServiceImpl{
		likeRepo:  likeRepo,
		storyRepo: storyRepo,
		events:    eventNotifier{broadcaster: broadcaster, logger: log},
		logger:    log,
	}
}

// Like добавляет лайк к опубликованной истории от пользователя.
func (s *likeServiceImpl) Like(ctx context.Context, userID, storyID uuid.UUID) error {
	logFields := []zap.Field{
		zap.String("userID", userID.String()),
		zap.String("storyID", storyID.String()),
	}
	if err := s.likeRepo.AddLike(ctx, userID, storyID); err != nil {
		if errors.Is(err, models.ErrLikeAlreadyExists) {
			s.logger.Warn("User already liked this story", logFields...)
		}
		return err
	}
	s.events.notify(ctx, models.StoryEvent{Type: models.EventStoryLiked, StoryID: storyID, UserID: userID})
	s.logger.Info("Story liked successfully", logFields...)
	return nil
}

// Unlike удаляет лайк с опубликованной истории от пользователя.
func (s *likeServiceImpl) Unlike(ctx context.Context, userID, storyID uuid.UUID) error {
	if err := s.likeRepo.RemoveLike(ctx, userID, storyID); err != nil {
		return err
	}
	s.logger.Info("Story unliked successfully", zap.String("userID", userID.String()), zap.String("storyID", storyID.String()))
	return nil
}

// ListLiked возвращает лайкнутые истории, от последних лайков к первым.
func (s *likeServiceImpl) ListLiked(ctx context.Context, userID uuid.UUID, cursor string, limit int) ([]models.StorySummary, string, error) {
	ids, next, err := s.likeRepo.ListLikedStoryIDs(ctx, userID, cursor, utils.SanitizeLimit(limit))
	if err != nil {
		return nil, "", err
	}
	if len(ids) == 0 {
		return []models.StorySummary{}, "", nil
	}
	stories, err := s.storyRepo.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("Error fetching liked stories by IDs", zap.String("userID", userID.String()), zap.Error(err))
		return nil, "", err
	}
	return stories, next, nil
}
