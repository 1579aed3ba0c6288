package storygraph

import (
	"fmt"
	"strings"
)

// ValidationError carries the messages produced by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	switch len(e.Problems) {
	case 0:
		return "draft is invalid"
	case 1:
		return "draft is invalid: " + e.Problems[0]
	default:
		return fmt.Sprintf("draft is invalid: %s (and %d more)", e.Problems[0], len(e.Problems)-1)
	}
}

// Check wraps the result of Validate into an error, or returns nil for a
// publishable draft.
func Check(d Draft) error {
	if problems := Validate(d); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Validate returns the ordered list of problems that block publishing d.
// An empty result means the draft may be submitted.
//
// Order: title, page count, then every page in order (text, ending/choice
// pairing, each choice's text and target), then the ending-page check. Checks
// never short-circuit each other.
func Validate(d Draft) []string {
	var problems []string

	if isBlank(d.Title) {
		problems = append(problems, "Title must not be blank")
	}

	pageCount := len(d.Pages)
	if pageCount == 0 {
		problems = append(problems, "Story must contain at least one page")
	}

	hasEnding := false
	for i, page := range d.Pages {
		pageNo := i + 1
		if page.IsEnding {
			hasEnding = true
		}

		if isBlank(page.Text) {
			problems = append(problems, fmt.Sprintf("Page %d: text must not be blank", pageNo))
		}

		switch {
		case page.IsEnding && len(page.Choices) > 0:
			problems = append(problems, fmt.Sprintf("Page %d: an ending page must not have choices", pageNo))
		case !page.IsEnding && len(page.Choices) == 0:
			problems = append(problems, fmt.Sprintf("Page %d: needs at least one choice", pageNo))
		}

		for j, choice := range page.Choices {
			choiceNo := j + 1
			if isBlank(choice.Text) {
				problems = append(problems, fmt.Sprintf("Page %d, choice %d: text must not be blank", pageNo, choiceNo))
			}
			index, ok := choice.Target.Index()
			if !ok {
				if !page.IsEnding {
					problems = append(problems, fmt.Sprintf("Page %d, choice %d: target page is not set", pageNo, choiceNo))
				}
				continue
			}
			if index < 0 || index >= pageCount {
				problems = append(problems, fmt.Sprintf("Page %d, choice %d: target page %d does not exist", pageNo, choiceNo, index+1))
			}
		}
	}

	if !hasEnding {
		problems = append(problems, "Story must contain an ending page")
	}

	return problems
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
