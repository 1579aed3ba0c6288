package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryEventType - тип события о изменении каталога.
type StoryEventType string

const (
	EventStoryPublished StoryEventType = "story.published"
	EventStoryDeleted   StoryEventType = "story.deleted"
	EventStoryReviewed  StoryEventType = "story.reviewed"
	EventStoryLiked     StoryEventType = "story.liked"
)

// StoryEvent публикуется в RabbitMQ и рассылается подключенным websocket-клиентам.
type StoryEvent struct {
	Type       StoryEventType `json:"type"`
	StoryID    uuid.UUID      `json:"story_id"`
	UserID     uuid.UUID      `json:"user_id"`
	Title      string         `json:"title,omitempty"`
	Rating     int            `json:"rating,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
