package interfaces

import (
	"context"

	"story-server/internal/models"
)

// StoryEventPublisher отправляет события каталога во внешнюю шину.
//
//go:generate mockery --name StoryEventPublisher --output ./mocks --outpkg mocks --case=underscore
type StoryEventPublisher interface {
	PublishStoryEvent(ctx context.Context, event models.StoryEvent) error
}

// Broadcaster рассылает события подключенным realtime-клиентам.
type Broadcaster interface {
	Broadcast(event models.StoryEvent)
}
