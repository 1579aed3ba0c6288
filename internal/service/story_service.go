package service

import (
	"context"

	"story-server/internal/interfaces"
	"story-server/internal/models"
	"story-server/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type storyBrowsingServiceImpl struct {
	storyRepo interfaces.StoryRepository
	likeRepo  interfaces.LikeRepository
	logger    *zap.Logger
}

// NewStoryBrowsingService создает сервис каталога.
func NewStoryBrowsingService(storyRepo interfaces.StoryRepository, likeRepo interfaces.LikeRepository, logger *zap.Logger) StoryBrowsingService {
	return &storyBrowsingServiceImpl{
		storyRepo: storyRepo,
		likeRepo:  likeRepo,
		logger:    logger.Named("StoryBrowsingService"),
	}
}

func (s *storyBrowsingServiceImpl) ListStories(ctx context.Context, filter models.StoryFilter, cursor string, limit int) ([]models.StorySummary, string, error) {
	stories, next, err := s.storyRepo.List(ctx, filter, cursor, utils.SanitizeLimit(limit))
	if err != nil {
		return nil, "", err
	}
	if stories == nil {
		stories = []models.StorySummary{}
	}
	return stories, next, nil
}

func (s *storyBrowsingServiceImpl) GetStory(ctx context.Context, storyID, viewerID uuid.UUID) (*models.StoryDetail, error) {
	detail, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if viewerID != uuid.Nil {
		liked, err := s.likeRepo.CheckLike(ctx, viewerID, storyID)
		if err != nil {
			// отдаем историю без признака лайка
			s.logger.Warn("Failed to check like status", zap.String("storyID", storyID.String()), zap.Error(err))
		} else {
			detail.IsLiked = liked
		}
	}
	return detail, nil
}

func (s *storyBrowsingServiceImpl) ListTags(ctx context.Context) ([]models.TagCount, error) {
	return s.storyRepo.ListTags(ctx)
}
