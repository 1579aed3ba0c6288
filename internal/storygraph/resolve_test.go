package storygraph_test

import (
	"encoding/json"
	"testing"

	"story-server/internal/storygraph"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequentialIDs returns a generator producing predictable UUIDs.
func sequentialIDs() func() uuid.UUID {
	var n byte
	return func() uuid.UUID {
		n++
		var id uuid.UUID
		id[15] = n
		return id
	}
}

func TestToSubmission(t *testing.T) {
	d := twoPageDraft()
	d.Description = "A short one"
	d.Tags = []string{"Mystery", "mystery"}

	sub := storygraph.ToSubmission(d)

	require.Len(t, sub.Pages, 2)
	assert.Equal(t, "The Door", sub.Title)
	assert.Equal(t, []string{"mystery"}, sub.Tags)
	require.Len(t, sub.Pages[0].Choices, 1)
	require.NotNil(t, sub.Pages[0].Choices[0].TargetPageIndex)
	assert.Equal(t, 1, *sub.Pages[0].Choices[0].TargetPageIndex)
	assert.True(t, sub.Pages[1].IsEndingPage)
	assert.Empty(t, sub.Pages[1].Choices)

	body, err := json.Marshal(sub)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"title": "The Door",
		"description": "A short one",
		"tags": ["mystery"],
		"pages": [
			{"text": "You stand before a door.", "isEndingPage": false, "choices": [{"text": "Open it", "targetPageIndex": 1}]},
			{"text": "It was a closet.", "isEndingPage": true, "choices": []}
		]
	}`, string(body))
}

func TestSubmissionDraftRoundTrip(t *testing.T) {
	d := twoPageDraft()
	back := storygraph.ToSubmission(d).Draft()
	assert.Equal(t, storygraph.Validate(d), storygraph.Validate(back))
	idx, ok := back.Pages[0].Choices[0].Target.Index()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestResolve(t *testing.T) {
	storyID := uuid.New()
	story := storygraph.Resolve(storygraph.ToSubmission(twoPageDraft()), storyID, sequentialIDs())

	ids := sequentialIDs()
	page0, page1, choice := ids(), ids(), ids()
	want := &storygraph.Story{
		ID:          storyID,
		Title:       "The Door",
		StartPageID: page0,
		Pages: []storygraph.Page{
			{
				ID:      page0,
				StoryID: storyID,
				Text:    "You stand before a door.",
				Choices: []storygraph.Choice{{ID: choice, PageID: page0, Text: "Open it", Target: storygraph.LinkTo(page1)}},
			},
			{
				ID:       page1,
				StoryID:  storyID,
				Text:     "It was a closet.",
				IsEnding: true,
				Choices:  []storygraph.Choice{},
			},
		},
	}

	opts := cmpopts.IgnoreFields(storygraph.Story{}, "CreatedAt", "UpdatedAt")
	if diff := cmp.Diff(want, story, opts, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolvePreservesOrder(t *testing.T) {
	d := storygraph.NewDraft("Fork")
	hub := storygraph.NewPage("Pick a path")
	for i := 3; i >= 1; i-- {
		hub.Choices = append(hub.Choices, storygraph.NewChoice("to "+string(rune('0'+i)), storygraph.TargetPage(i)))
	}
	d.Pages = append(d.Pages, hub)
	for i := 1; i <= 3; i++ {
		p := storygraph.NewPage("end")
		p.IsEnding = true
		d.Pages = append(d.Pages, p)
	}
	require.Empty(t, storygraph.Validate(d))

	sub := storygraph.ToSubmission(d)
	story := storygraph.Resolve(sub, uuid.New(), nil)
	require.Len(t, story.Pages, len(d.Pages))

	for j, c := range story.Pages[0].Choices {
		idx := *sub.Pages[0].Choices[j].TargetPageIndex
		target, ok := c.Target.PageID()
		require.True(t, ok)
		assert.Equal(t, story.Pages[idx].ID, target, "choice %d", j)
		assert.Equal(t, sub.Pages[0].Choices[j].Text, c.Text)
	}
}

func TestChoiceTargetJSON(t *testing.T) {
	c := storygraph.Choice{ID: uuid.New(), Text: "x"}
	body, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"targetPageId":null`)

	target := uuid.New()
	c.Target = storygraph.LinkTo(target)
	body, err = json.Marshal(c)
	require.NoError(t, err)

	var back storygraph.Choice
	require.NoError(t, json.Unmarshal(body, &back))
	got, ok := back.Target.PageID()
	assert.True(t, ok)
	assert.Equal(t, target, got)

	var dc storygraph.DraftChoice
	require.NoError(t, json.Unmarshal([]byte(`{"text":"y","target":null}`), &dc))
	assert.False(t, dc.Target.IsSet())
	require.NoError(t, json.Unmarshal([]byte(`{"text":"y","target":4}`), &dc))
	idx, ok := dc.Target.Index()
	assert.True(t, ok)
	assert.Equal(t, 4, idx)
}
