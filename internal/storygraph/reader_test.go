package storygraph_test

import (
	"testing"

	"story-server/internal/storygraph"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishedDoor(t *testing.T) *storygraph.Story {
	t.Helper()
	return storygraph.Resolve(storygraph.ToSubmission(twoPageDraft()), uuid.New(), nil)
}

func TestReader(t *testing.T) {
	t.Run("walks to the ending", func(t *testing.T) {
		story := publishedDoor(t)
		r, err := storygraph.NewReader(story)
		require.NoError(t, err)

		assert.Equal(t, story.StartPageID, r.Current().ID)
		assert.False(t, r.Ended())
		opts := r.Options()
		require.Len(t, opts, 1)
		assert.Equal(t, opts, r.Current().Options)
		assert.Equal(t, "Open it", opts[0].Text)

		require.NoError(t, r.Choose(opts[0].ChoiceID))
		assert.True(t, r.Ended())
		assert.Equal(t, story.Pages[1].ID, r.Current().ID)
		assert.Empty(t, r.Options())
		assert.ErrorIs(t, r.ChooseAt(0), storygraph.ErrStoryEnded)

		r.Restart()
		assert.Equal(t, story.StartPageID, r.Current().ID)
	})

	t.Run("ending page hides stored choices", func(t *testing.T) {
		story := publishedDoor(t)
		story.Pages[1].Choices = []storygraph.Choice{{ID: uuid.New(), Text: "Back", Target: storygraph.LinkTo(story.Pages[0].ID)}}
		r, err := storygraph.NewReader(story)
		require.NoError(t, err)
		require.NoError(t, r.ChooseAt(0))
		assert.Empty(t, r.Options())
		view := r.Current()
		assert.True(t, view.IsEnding)
		assert.Empty(t, view.Options)
		assert.Equal(t, story.Pages[1].Text, view.Text)
		assert.ErrorIs(t, r.Choose(story.Pages[1].Choices[0].ID), storygraph.ErrStoryEnded)
	})

	t.Run("dangling target fails closed", func(t *testing.T) {
		story := publishedDoor(t)
		story.Pages[0].Choices[0].Target = storygraph.LinkTo(uuid.New())
		r, err := storygraph.NewReader(story)
		require.NoError(t, err)

		err = r.ChooseAt(0)
		assert.ErrorIs(t, err, storygraph.ErrDanglingChoice)
		assert.Equal(t, story.Pages[0].ID, r.Current().ID)

		story.Pages[0].Choices[0].Target = storygraph.NoLink()
		assert.ErrorIs(t, r.ChooseAt(0), storygraph.ErrDanglingChoice)
	})

	t.Run("unknown choice", func(t *testing.T) {
		r, err := storygraph.NewReader(publishedDoor(t))
		require.NoError(t, err)
		assert.ErrorIs(t, r.Choose(uuid.New()), storygraph.ErrUnknownChoice)
		assert.ErrorIs(t, r.ChooseAt(5), storygraph.ErrUnknownChoice)
	})

	t.Run("bad stories", func(t *testing.T) {
		_, err := storygraph.NewReader(&storygraph.Story{})
		assert.ErrorIs(t, err, storygraph.ErrEmptyStory)

		story := publishedDoor(t)
		story.StartPageID = uuid.New()
		_, err = storygraph.NewReader(story)
		assert.ErrorIs(t, err, storygraph.ErrUnknownPage)
	})

	t.Run("start defaults to first page", func(t *testing.T) {
		story := publishedDoor(t)
		story.StartPageID = uuid.Nil
		r, err := storygraph.NewReader(story)
		require.NoError(t, err)
		assert.Equal(t, story.Pages[0].ID, r.Current().ID)
	})
}
