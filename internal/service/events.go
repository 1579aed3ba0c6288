package service

import (
	"context"
	"time"

	"story-server/internal/interfaces"
	"story-server/internal/models"

	"go.uber.org/zap"
)

// eventNotifier отправляет событие в шину и подключенным клиентам.
// Ошибки только логируются: событие отправляется после коммита.
type eventNotifier struct {
	publisher   interfaces.StoryEventPublisher
	broadcaster interfaces.Broadcaster
	logger      *zap.Logger
}

func (n eventNotifier) notify(ctx context.Context, event models.StoryEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if n.publisher != nil {
		if err := n.publisher.PublishStoryEvent(ctx, event); err != nil {
			n.logger.Warn("Failed to publish story event",
				zap.String("type", string(event.Type)),
				zap.String("storyID", event.StoryID.String()),
				zap.Error(err),
			)
		}
	}
	if n.broadcaster != nil {
		n.broadcaster.Broadcast(event)
	}
}
