package storygraph

import (
	"time"

	"github.com/google/uuid"
)

// Submission is the publish request body. Choice targets are still page
// positions; the server turns them into page IDs.
type Submission struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Tags        []string         `json:"tags"`
	Pages       []SubmissionPage `json:"pages"`
}

type SubmissionPage struct {
	Text         string             `json:"text"`
	ImageURL     string             `json:"imageUrl,omitempty"`
	IsEndingPage bool               `json:"isEndingPage"`
	Choices      []SubmissionChoice `json:"choices"`
}

type SubmissionChoice struct {
	Text            string `json:"text"`
	TargetPageIndex *int   `json:"targetPageIndex"`
}

// ToSubmission maps a draft onto the submission shape, keeping page and choice
// order. It does not validate; callers run Validate first.
func ToSubmission(d Draft) Submission {
	sub := Submission{
		Title:       d.Title,
		Description: d.Description,
		Tags:        NormalizeTags(d.Tags),
		Pages:       make([]SubmissionPage, len(d.Pages)),
	}
	if sub.Tags == nil {
		sub.Tags = []string{}
	}
	for i, page := range d.Pages {
		sp := SubmissionPage{
			Text:         page.Text,
			IsEndingPage: page.IsEnding,
			Choices:      make([]SubmissionChoice, len(page.Choices)),
		}
		for j, choice := range page.Choices {
			sp.Choices[j] = SubmissionChoice{
				Text:            choice.Text,
				TargetPageIndex: choice.Target.Ptr(),
			}
		}
		sub.Pages[i] = sp
	}
	return sub
}

// Draft views an untrusted submission as a draft so it can go through the same
// validator on the receiving side.
func (s Submission) Draft() Draft {
	d := Draft{
		Title:       s.Title,
		Description: s.Description,
		Tags:        s.Tags,
		Pages:       make([]DraftPage, len(s.Pages)),
	}
	for i, page := range s.Pages {
		dp := DraftPage{
			Text:     page.Text,
			IsEnding: page.IsEndingPage,
			Choices:  make([]DraftChoice, len(page.Choices)),
		}
		for j, choice := range page.Choices {
			dp.Choices[j] = DraftChoice{
				Text:   choice.Text,
				Target: TargetFromPtr(choice.TargetPageIndex),
			}
		}
		d.Pages[i] = dp
	}
	return d
}

// Resolve builds the published story for a validated submission. Page IDs are
// assigned in page order and every choice target index i becomes the ID of the
// page at position i. Indices outside the page range are left unlinked.
func Resolve(sub Submission, storyID uuid.UUID, newID func() uuid.UUID) *Story {
	if newID == nil {
		newID = uuid.New
	}

	now := time.Now().UTC()
	story := &Story{
		ID:          storyID,
		Title:       sub.Title,
		Description: sub.Description,
		Tags:        NormalizeTags(sub.Tags),
		Pages:       make([]Page, len(sub.Pages)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	pageIDs := make([]uuid.UUID, len(sub.Pages))
	for i := range sub.Pages {
		pageIDs[i] = newID()
	}

	for i, sp := range sub.Pages {
		page := Page{
			ID:       pageIDs[i],
			StoryID:  storyID,
			Text:     sp.Text,
			ImageURL: sp.ImageURL,
			IsEnding: sp.IsEndingPage,
			Choices:  make([]Choice, len(sp.Choices)),
		}
		for j, sc := range sp.Choices {
			target := NoLink()
			if idx := sc.TargetPageIndex; idx != nil && *idx >= 0 && *idx < len(pageIDs) {
				target = LinkTo(pageIDs[*idx])
			}
			page.Choices[j] = Choice{
				ID:     newID(),
				PageID: page.ID,
				Text:   sc.Text,
				Target: target,
			}
		}
		story.Pages[i] = page
	}

	if len(story.Pages) > 0 {
		story.StartPageID = story.Pages[0].ID
	}
	return story
}
