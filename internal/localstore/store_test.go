package localstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"story-server/internal/models"
	"story-server/internal/storygraph"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var draftCmpOpts = []cmp.Option{
	cmp.AllowUnexported(storygraph.DraftTarget{}),
	cmpopts.EquateEmpty(),
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDraft() *storygraph.Draft {
	d := storygraph.NewDraft("Cave")
	d.Description = "A short walk"
	d.Tags = []string{" Horror ", "short", "horror"}
	start := storygraph.NewPage("You stand at the mouth of a cave.")
	start.Choices = []storygraph.DraftChoice{
		storygraph.NewChoice("Go in", storygraph.TargetPage(1)),
		storygraph.NewChoice("Think about it", storygraph.NoTarget()),
	}
	end := storygraph.NewPage("It is dark.")
	end.IsEnding = true
	d.Pages = []storygraph.DraftPage{start, end}
	return &d
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}

func requireClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel was not closed")
		}
	}
}

func TestDrafts(t *testing.T) {
	ctx := context.Background()

	t.Run("Round trip keeps order and targets", func(t *testing.T) {
		s := openTestStore(t)
		d := sampleDraft()
		require.NoError(t, s.SaveDraft(ctx, d))
		assert.Equal(t, []string{"horror", "short"}, d.Tags)
		assert.False(t, d.SavedAt.IsZero())

		got, err := s.GetDraft(ctx, d.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(d, got, draftCmpOpts...); diff != "" {
			t.Errorf("draft mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Save replaces pages atomically", func(t *testing.T) {
		s := openTestStore(t)
		d := sampleDraft()
		require.NoError(t, s.SaveDraft(ctx, d))

		d.RemovePage(1)
		d.Pages[0].Choices = d.Pages[0].Choices[1:]
		d.Tags = nil
		require.NoError(t, s.SaveDraft(ctx, d))

		got, err := s.GetDraft(ctx, d.ID)
		require.NoError(t, err)
		require.Len(t, got.Pages, 1)
		require.Len(t, got.Pages[0].Choices, 1)
		assert.Equal(t, "Think about it", got.Pages[0].Choices[0].Text)
		assert.Empty(t, got.Tags)
	})

	t.Run("Assigns missing ids", func(t *testing.T) {
		s := openTestStore(t)
		d := &storygraph.Draft{Title: "No ids", Pages: []storygraph.DraftPage{{Text: "Only"}}}
		require.NoError(t, s.SaveDraft(ctx, d))
		assert.NotEqual(t, uuid.Nil, d.ID)
		assert.NotEqual(t, uuid.Nil, d.Pages[0].ID)
	})

	t.Run("Failed save leaves the draft untouched", func(t *testing.T) {
		s := openTestStore(t)
		dup := uuid.New()
		d := &storygraph.Draft{Title: "Broken", Pages: []storygraph.DraftPage{
			{Text: "New", Choices: []storygraph.DraftChoice{{Text: "On", Target: storygraph.TargetPage(1)}}},
			{ID: dup, Text: "A", IsEnding: true},
			{ID: dup, Text: "B", IsEnding: true},
		}}

		require.Error(t, s.SaveDraft(ctx, d))
		assert.Equal(t, uuid.Nil, d.ID)
		assert.Equal(t, uuid.Nil, d.Pages[0].ID)
		assert.Equal(t, uuid.Nil, d.Pages[0].Choices[0].ID)
		assert.True(t, d.SavedAt.IsZero())

		list, err := s.ListDrafts(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("List is newest first", func(t *testing.T) {
		s := openTestStore(t)
		older := sampleDraft()
		require.NoError(t, s.SaveDraft(ctx, older))
		time.Sleep(5 * time.Millisecond)
		newer := sampleDraft()
		newer.Title = "Second"
		require.NoError(t, s.SaveDraft(ctx, newer))

		list, err := s.ListDrafts(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)
		assert.Equal(t, 2, list[0].PagesCount)
		assert.Equal(t, []string{"horror", "short"}, list[0].Tags)
	})

	t.Run("Delete", func(t *testing.T) {
		s := openTestStore(t)
		d := sampleDraft()
		require.NoError(t, s.SaveDraft(ctx, d))
		require.NoError(t, s.DeleteDraft(ctx, d.ID))

		_, err := s.GetDraft(ctx, d.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteDraft(ctx, d.ID), ErrNotFound)
	})
}

func TestWatchDrafts(t *testing.T) {
	ctx := context.Background()

	t.Run("Initial and updated snapshots", func(t *testing.T) {
		s := openTestStore(t)
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch, err := s.WatchDrafts(wctx)
		require.NoError(t, err)
		assert.Empty(t, receive(t, ch))

		d := sampleDraft()
		require.NoError(t, s.SaveDraft(ctx, d))
		snapshot := receive(t, ch)
		require.Len(t, snapshot, 1)
		assert.Equal(t, d.ID, snapshot[0].ID)
	})

	t.Run("Slow reader gets the newest snapshot", func(t *testing.T) {
		s := openTestStore(t)
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch, err := s.WatchDrafts(wctx)
		require.NoError(t, err)
		receive(t, ch)

		for i := 0; i < 3; i++ {
			require.NoError(t, s.SaveDraft(ctx, sampleDraft()))
		}
		assert.Len(t, receive(t, ch), 3)
	})

	t.Run("Cancel closes the channel", func(t *testing.T) {
		s := openTestStore(t)
		wctx, cancel := context.WithCancel(ctx)
		ch, err := s.WatchDrafts(wctx)
		require.NoError(t, err)
		cancel()
		requireClosed(t, ch)
	})

	t.Run("Close ends every subscription", func(t *testing.T) {
		s := openTestStore(t)
		drafts, err := s.WatchDrafts(ctx)
		require.NoError(t, err)
		stories, err := s.WatchStories(ctx)
		require.NoError(t, err)

		require.NoError(t, s.Close())
		requireClosed(t, drafts)
		requireClosed(t, stories)

		_, err = s.WatchDrafts(ctx)
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, s.SaveDraft(ctx, sampleDraft()), ErrClosed)
		assert.NoError(t, s.Close())
	})
}

func sampleStory(title string) *models.StoryDetail {
	storyID := uuid.New()
	start, end := uuid.New(), uuid.New()
	return &models.StoryDetail{
		Story: storygraph.Story{
			ID:          storyID,
			AuthorID:    uuid.New(),
			Title:       title,
			Tags:        []string{"horror"},
			StartPageID: start,
			Pages: []storygraph.Page{
				{ID: start, StoryID: storyID, Text: "Start", Choices: []storygraph.Choice{
					{ID: uuid.New(), PageID: start, Text: "On", Target: storygraph.LinkTo(end)},
					{ID: uuid.New(), PageID: start, Text: "Nowhere", Target: storygraph.NoLink()},
				}},
				{ID: end, StoryID: storyID, Text: "End", IsEnding: true, Choices: []storygraph.Choice{}},
			},
			CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
		AuthorName: "writer",
		LikesCount: 3,
		RatingAvg:  4.5,
		IsLiked:    true,
	}
}

func TestStories(t *testing.T) {
	ctx := context.Background()

	t.Run("Round trip", func(t *testing.T) {
		s := openTestStore(t)
		want := sampleStory("Cave")
		require.NoError(t, s.PutStory(ctx, want))

		got, err := s.GetStory(ctx, want.Story.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("story mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Last write wins", func(t *testing.T) {
		s := openTestStore(t)
		first := sampleStory("Cave")
		require.NoError(t, s.PutStory(ctx, first))

		second := sampleStory("Cave, revised")
		second.Story.ID = first.Story.ID
		second.Story.Pages = second.Story.Pages[1:]
		second.Story.StartPageID = second.Story.Pages[0].ID
		second.Story.Tags = []string{"short"}
		require.NoError(t, s.PutStory(ctx, second))

		got, err := s.GetStory(ctx, first.Story.ID)
		require.NoError(t, err)
		assert.Equal(t, "Cave, revised", got.Story.Title)
		assert.Len(t, got.Story.Pages, 1)
		assert.Equal(t, []string{"short"}, got.Story.Tags)
	})

	t.Run("List filters by tag", func(t *testing.T) {
		s := openTestStore(t)
		horror := sampleStory("Cave")
		other := sampleStory("Meadow")
		other.Story.Tags = []string{"calm"}
		require.NoError(t, s.PutStory(ctx, horror))
		require.NoError(t, s.PutStory(ctx, other))

		all, err := s.ListStories(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		filtered, err := s.ListStories(ctx, " HORROR")
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		assert.Equal(t, horror.Story.ID, filtered[0].ID)
		assert.Equal(t, 2, filtered[0].PagesCount)
		assert.Equal(t, "writer", filtered[0].AuthorName)
	})

	t.Run("Missing and deleted", func(t *testing.T) {
		s := openTestStore(t)
		_, err := s.GetStory(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)

		st := sampleStory("Cave")
		require.NoError(t, s.PutStory(ctx, st))
		require.NoError(t, s.DeleteStory(ctx, st.Story.ID))
		_, err = s.GetStory(ctx, st.Story.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, s.DeleteStory(ctx, st.Story.ID))
	})

	t.Run("Watch sees cached stories", func(t *testing.T) {
		s := openTestStore(t)
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch, err := s.WatchStories(wctx)
		require.NoError(t, err)
		assert.Empty(t, receive(t, ch))

		st := sampleStory("Cave")
		require.NoError(t, s.PutStory(ctx, st))
		snapshot := receive(t, ch)
		require.Len(t, snapshot, 1)
		assert.Equal(t, st.Story.ID, snapshot[0].ID)
	})

	t.Run("Closed store", func(t *testing.T) {
		s := openTestStore(t)
		require.NoError(t, s.Close())
		_, err := s.GetStory(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrClosed)
		assert.ErrorIs(t, s.PutStory(ctx, sampleStory("Cave")), ErrClosed)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ", zerolog.Nop())
	assert.ErrorIs(t, err, ErrStorage)
}
