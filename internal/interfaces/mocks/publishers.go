package mocks

import (
	"context"

	"story-server/internal/interfaces"
	"story-server/internal/models"

	"github.com/stretchr/testify/mock"
)

var (
	_ interfaces.StoryEventPublisher = (*StoryEventPublisher)(nil)
	_ interfaces.Broadcaster         = (*Broadcaster)(nil)
)

// Mock StoryEventPublisher
type StoryEventPublisher struct {
	mock.Mock
}

func (m *StoryEventPublisher) PublishStoryEvent(ctx context.Context, event models.StoryEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// Mock Broadcaster
type Broadcaster struct {
	mock.Mock
}

func (m *Broadcaster) Broadcast(event models.StoryEvent) {
	m.Called(event)
}
