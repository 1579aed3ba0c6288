package storygraph

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrEmptyStory     = errors.New("story has no pages")
	ErrUnknownPage    = errors.New("page does not exist in this story")
	ErrUnknownChoice  = errors.New("choice is not offered on the current page")
	ErrDanglingChoice = errors.New("choice leads to a page that does not exist in this story")
	ErrStoryEnded     = errors.New("story has ended")
)

// Option is a choice offered to the reader on the current page.
type Option struct {
	ChoiceID uuid.UUID
	Text     string
}

// PageView is what the reader sees on the current page.
type PageView struct {
	ID       uuid.UUID
	Text     string
	ImageURL string
	IsEnding bool
	Options  []Option
}

// Reader walks a published story from its start page. It keeps no history.
type Reader struct {
	story   *Story
	pages   map[uuid.UUID]int
	start   int
	current int
}

// NewReader positions a reader at the story's start page.
func NewReader(story *Story) (*Reader, error) {
	if story == nil || len(story.Pages) == 0 {
		return nil, ErrEmptyStory
	}
	pages := make(map[uuid.UUID]int, len(story.Pages))
	for i, p := range story.Pages {
		pages[p.ID] = i
	}
	start := 0
	if story.StartPageID != uuid.Nil {
		idx, ok := pages[story.StartPageID]
		if !ok {
			return nil, fmt.Errorf("start page %s: %w", story.StartPageID, ErrUnknownPage)
		}
		start = idx
	}
	return &Reader{story: story, pages: pages, start: start, current: start}, nil
}

// Story returns the story being read.
func (r *Reader) Story() *Story {
	return r.story
}

// Current returns a view of the page the reader is on.
func (r *Reader) Current() PageView {
	page := r.page()
	return PageView{
		ID:       page.ID,
		Text:     page.Text,
		ImageURL: page.ImageURL,
		IsEnding: page.IsEnding,
		Options:  r.Options(),
	}
}

func (r *Reader) page() *Page {
	return &r.story.Pages[r.current]
}

// Ended reports whether the current page is an ending page.
func (r *Reader) Ended() bool {
	return r.page().IsEnding
}

// Options lists the choices offered on the current page. Ending pages offer
// nothing, even if choices are stored on them.
func (r *Reader) Options() []Option {
	page := r.page()
	if page.IsEnding {
		return nil
	}
	opts := make([]Option, 0, len(page.Choices))
	for _, c := range page.Choices {
		opts = append(opts, Option{ChoiceID: c.ID, Text: c.Text})
	}
	return opts
}

// Choose follows the choice with the given ID. On error the position is
// unchanged.
func (r *Reader) Choose(choiceID uuid.UUID) error {
	page := r.page()
	if page.IsEnding {
		return ErrStoryEnded
	}
	for _, c := range page.Choices {
		if c.ID != choiceID {
			continue
		}
		return r.follow(c)
	}
	return ErrUnknownChoice
}

// ChooseAt follows the i-th offered option (0-based).
func (r *Reader) ChooseAt(i int) error {
	page := r.page()
	if page.IsEnding {
		return ErrStoryEnded
	}
	if i < 0 || i >= len(page.Choices) {
		return ErrUnknownChoice
	}
	return r.follow(page.Choices[i])
}

func (r *Reader) follow(c Choice) error {
	target, ok := c.Target.PageID()
	if !ok {
		return fmt.Errorf("choice %s has no target: %w", c.ID, ErrDanglingChoice)
	}
	idx, ok := r.pages[target]
	if !ok {
		return fmt.Errorf("choice %s targets %s: %w", c.ID, target, ErrDanglingChoice)
	}
	r.current = idx
	return nil
}

// Restart moves the reader back to the start page.
func (r *Reader) Restart() {
	r.current = r.start
}
