package service

import (
	"context"
	"fmt"

	"story-server/internal/interfaces"
	"story-server/internal/models"
	"story-server/internal/storygraph"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type publishingServiceImpl struct {
	storyRepo interfaces.StoryRepository
	events    eventNotifier
	logger    *zap.Logger
}

// NewPublishingService создает сервис публикации. publisher и broadcaster могут быть nil.
func NewPublishingService(
	storyRepo interfaces.StoryRepository,
	publisher interfaces.StoryEventPublisher,
	broadcaster interfaces.Broadcaster,
	logger *zap.Logger,
) PublishingService {
	log := logger.Named("PublishingService")
	return &publishingServiceImpl{
		storyRepo: storyRepo,
		events:    eventNotifier{publisher: publisher, broadcaster: broadcaster, logger: log},
		logger:    log,
	}
}

func (s *publishingServiceImpl) Publish(ctx context.Context, authorID uuid.UUID, sub storygraph.Submission) (uuid.UUID, error) {
	logFields := []zap.Field{
		zap.String("authorID", authorID.String()),
		zap.Int("pages", len(sub.Pages)),
	}
	s.logger.Info("Publishing story", logFields...)

	if len(sub.Pages) > models.MaxStoryPages {
		return uuid.Nil, fmt.Errorf("%w: a story can have at most %d pages", models.ErrInvalidInput, models.MaxStoryPages)
	}
	for i, p := range sub.Pages {
		if len(p.Choices) > models.MaxChoicesPerPage {
			return uuid.Nil, fmt.Errorf("%w: page %d has more than %d choices", models.ErrInvalidInput, i+1, models.MaxChoicesPerPage)
		}
	}

	// Клиент уже проверял черновик, но тело запроса недоверенное.
	if err := storygraph.Check(sub.Draft()); err != nil {
		s.logger.Warn("Submission rejected by validator", append(logFields, zap.Error(err))...)
		return uuid.Nil, err
	}

	story := storygraph.Resolve(sub, uuid.New(), nil)
	story.AuthorID = authorID
	if err := s.storyRepo.Create(ctx, story); err != nil {
		return uuid.Nil, err
	}

	s.events.notify(ctx, models.StoryEvent{
		Type:       models.EventStoryPublished,
		StoryID:    story.ID,
		UserID:     authorID,
		Title:      story.Title,
		OccurredAt: story.CreatedAt,
	})
	s.logger.Info("Story published", append(logFields, zap.String("storyID", story.ID.String()))...)
	return story.ID, nil
}

// Delete удаляет историю, если userID ее автор.
func (s *publishingServiceImpl) Delete(ctx context.Context, storyID, userID uuid.UUID) error {
	logFields := []zap.Field{zap.String("storyID", storyID.String()), zap.String("userID", userID.String())}

	authorID, err := s.storyRepo.GetAuthorID(ctx, storyID)
	if err != nil {
		return err
	}
	if authorID != userID {
		s.logger.Warn("Delete attempt by non-author", logFields...)
		return models.ErrForbidden
	}
	if err := s.storyRepo.Delete(ctx, storyID, userID); err != nil {
		return err
	}

	s.events.notify(ctx, models.StoryEvent{Type: models.EventStoryDeleted, StoryID: storyID, UserID: userID})
	s.logger.Info("Story deleted", logFields...)
	return nil
}
