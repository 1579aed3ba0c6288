package models

import (
	"time"

	"story-server/internal/storygraph"

	"github.com/google/uuid"
)

// StorySummary - строка каталога опубликованных историй.
type StorySummary struct {
	ID           uuid.UUID `db:"id" json:"id"`
	AuthorID     uuid.UUID `db:"author_id" json:"author_id"`
	AuthorName   string    `db:"author_name" json:"author_name"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	CoverURL     string    `db:"cover_url" json:"cover_url,omitempty"`
	Tags         []string  `db:"tags" json:"tags"`
	PagesCount   int       `db:"pages_count" json:"pages_count"`
	LikesCount   int64     `db:"likes_count" json:"likes_count"`
	ReviewsCount int64     `db:"reviews_count" json:"reviews_count"`
	RatingAvg    float64   `db:"rating_avg" json:"rating_avg"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// StoryDetail - полная история с графом страниц и агрегатами.
type StoryDetail struct {
	Story        storygraph.Story `json:"story"`
	AuthorName   string           `json:"author_name"`
	LikesCount   int64            `json:"likes_count"`
	ReviewsCount int64            `json:"reviews_count"`
	RatingAvg    float64          `json:"rating_avg"`
	IsLiked      bool             `json:"is_liked"`
}

// StoryFilter - параметры выборки каталога.
type StoryFilter struct {
	Tag      string
	AuthorID uuid.UUID
	Query    string
}

// TagCount - тег и количество историй с ним.
type TagCount struct {
	Name    string `db:"name" json:"name"`
	Stories int64  `db:"stories" json:"stories"`
}

// Review - отзыв пользователя об истории.
type Review struct {
	ID         uuid.UUID `db:"id" json:"id"`
	StoryID    uuid.UUID `db:"story_id" json:"story_id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	AuthorName string    `db:"author_name" json:"author_name"`
	Rating     int       `db:"rating" json:"rating"`
	Text       string    `db:"text" json:"text"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

const (
	MinRating         = 1
	MaxRating         = 5
	MaxReviewLength   = 2000
	MaxSignatureLen   = 200
	MaxDisplayName    = 50
	MaxStoryPages     = 500
	MaxChoicesPerPage = 20
)
