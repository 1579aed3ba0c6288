package storygraph

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Draft is a locally authored story that has not been published yet.
// Pages are addressed by their position in Pages, not by ID.
type Draft struct {
	ID             uuid.UUID   `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	Tags           []string    `json:"tags,omitempty"`
	CoverImagePath string      `json:"coverImagePath,omitempty"`
	SavedAt        time.Time   `json:"savedAt"`
	Pages          []DraftPage `json:"pages"`
}

// DraftPage is a node of the draft graph.
type DraftPage struct {
	ID        uuid.UUID     `json:"id"`
	Text      string        `json:"text"`
	ImagePath string        `json:"imagePath,omitempty"`
	IsEnding  bool          `json:"isEnding"`
	Choices   []DraftChoice `json:"choices"`
}

// DraftChoice is an edge of the draft graph.
type DraftChoice struct {
	ID     uuid.UUID   `json:"id"`
	Text   string      `json:"text"`
	Target DraftTarget `json:"target"`
}

// DraftTarget references a page by its position in the draft. The zero value
// is an unset target.
type DraftTarget struct {
	index int
	set   bool
}

// TargetPage returns a target pointing at the page at position index.
func TargetPage(index int) DraftTarget {
	return DraftTarget{index: index, set: true}
}

// NoTarget returns an unset target.
func NoTarget() DraftTarget {
	return DraftTarget{}
}

// Index returns the referenced position and whether the target is set.
func (t DraftTarget) Index() (int, bool) {
	return t.index, t.set
}

// IsSet reports whether the target references a page.
func (t DraftTarget) IsSet() bool {
	return t.set
}

// Ptr converts the target to the nullable wire representation.
func (t DraftTarget) Ptr() *int {
	if !t.set {
		return nil
	}
	i := t.index
	return &i
}

// TargetFromPtr is the inverse of Ptr.
func TargetFromPtr(p *int) DraftTarget {
	if p == nil {
		return NoTarget()
	}
	return TargetPage(*p)
}

func (t DraftTarget) String() string {
	if !t.set {
		return "none"
	}
	return fmt.Sprintf("page %d", t.index+1)
}

// MarshalJSON encodes the target as an integer or null.
func (t DraftTarget) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Ptr())
}

// UnmarshalJSON decodes an integer or null.
func (t *DraftTarget) UnmarshalJSON(data []byte) error {
	var p *int
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("draft target: %w", err)
	}
	*t = TargetFromPtr(p)
	return nil
}

// NewDraft returns an empty draft with a fresh ID.
func NewDraft(title string) Draft {
	return Draft{ID: uuid.New(), Title: title}
}

// NewPage returns an empty non-ending page with a fresh ID.
func NewPage(text string) DraftPage {
	return DraftPage{ID: uuid.New(), Text: text}
}

// NewChoice returns a choice with a fresh ID.
func NewChoice(text string, target DraftTarget) DraftChoice {
	return DraftChoice{ID: uuid.New(), Text: text, Target: target}
}

// RemovePage drops the page at index. Targets of the remaining choices are not
// rewritten; stale references are reported by Validate.
func (d *Draft) RemovePage(index int) {
	if index < 0 || index >= len(d.Pages) {
		return
	}
	d.Pages = append(d.Pages[:index], d.Pages[index+1:]...)
}

// NormalizeTags trims, lowercases and de-duplicates tag names, keeping the
// first occurrence order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
