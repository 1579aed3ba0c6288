package storygraph

import (
	"time"

	"github.com/google/uuid"
)

// Story is a published story. Pages are addressed by ID only.
type Story struct {
	ID          uuid.UUID `json:"id"`
	AuthorID    uuid.UUID `json:"authorId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	CoverURL    string    `json:"coverUrl,omitempty"`
	StartPageID uuid.UUID `json:"startPageId"`
	Pages       []Page    `json:"pages"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Page is a node of a published story.
type Page struct {
	ID       uuid.UUID `json:"id"`
	StoryID  uuid.UUID `json:"storyId"`
	Text     string    `json:"text"`
	ImageURL string    `json:"imageUrl,omitempty"`
	IsEnding bool      `json:"isEnding"`
	Choices  []Choice  `json:"choices"`
}

// Choice is an edge of a published story.
type Choice struct {
	ID     uuid.UUID `json:"id"`
	PageID uuid.UUID `json:"pageId"`
	Text   string    `json:"text"`
	Target PageLink  `json:"targetPageId"`
}

// PageLink references a published page by ID, or nothing. It encodes as a
// UUID string or null and scans from a nullable uuid column.
type PageLink struct {
	uuid.NullUUID
}

// LinkTo returns a link to the page with the given ID.
func LinkTo(id uuid.UUID) PageLink {
	return PageLink{uuid.NullUUID{UUID: id, Valid: true}}
}

// NoLink returns an absent link.
func NoLink() PageLink {
	return PageLink{}
}

// PageID returns the linked page ID and whether the link is present.
func (l PageLink) PageID() (uuid.UUID, bool) {
	return l.UUID, l.Valid
}

// Page returns the page with the given ID.
func (s *Story) Page(id uuid.UUID) (*Page, bool) {
	for i := range s.Pages {
		if s.Pages[i].ID == id {
			return &s.Pages[i], true
		}
	}
	return nil, false
}

// StartPage returns the designated start page, defaulting to the first page.
func (s *Story) StartPage() (*Page, bool) {
	if s.StartPageID != uuid.Nil {
		return s.Page(s.StartPageID)
	}
	if len(s.Pages) == 0 {
		return nil, false
	}
	return &s.Pages[0], true
}
