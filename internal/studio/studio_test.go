package studio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"story-server/internal/client"
	"story-server/internal/localstore"
	"story-server/internal/models"
	"story-server/internal/storygraph"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Publish(ctx context.Context, sub storygraph.Submission) (uuid.UUID, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockRemote) GetStory(ctx context.Context, storyID uuid.UUID) (*models.StoryDetail, error) {
	args := m.Called(ctx, storyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoryDetail), args.Error(1)
}

func (m *mockRemote) ListStories(ctx context.Context, q client.StoryQuery) (models.PaginatedResponse[models.StorySummary], error) {
	args := m.Called(ctx, q)
	return args.Get(0).(models.PaginatedResponse[models.StorySummary]), args.Error(1)
}

func newTestStudio(t *testing.T) (*Studio, *mockRemote, *localstore.Store) {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "cache.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	remote := new(mockRemote)
	return New(remote, store, zerolog.Nop()), remote, store
}

func validDraft() storygraph.Draft {
	d := storygraph.NewDraft("Cave")
	start := storygraph.NewPage("You stand at the mouth of a cave.")
	start.Choices = []storygraph.DraftChoice{storygraph.NewChoice("Go in", storygraph.TargetPage(1))}
	end := storygraph.NewPage("It is dark.")
	end.IsEnding = true
	d.Pages = []storygraph.DraftPage{start, end}
	return d
}

func publishedStory(id uuid.UUID) *models.StoryDetail {
	page := uuid.New()
	return &models.StoryDetail{Story: storygraph.Story{
		ID:          id,
		AuthorID:    uuid.New(),
		Title:       "Cave",
		StartPageID: page,
		Pages:       []storygraph.Page{{ID: page, StoryID: id, Text: "It is dark.", IsEnding: true}},
	}}
}

func TestPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("Invalid draft is not sent", func(t *testing.T) {
		s, remote, _ := newTestStudio(t)
		d := validDraft()
		d.Title = "  "
		require.NoError(t, s.SaveDraft(ctx, &d))

		_, err := s.Publish(ctx, d.ID)
		var vErr *storygraph.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, []string{"Title must not be blank"}, vErr.Problems)
		remote.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("Success removes draft and caches story", func(t *testing.T) {
		s, remote, store := newTestStudio(t)
		d := validDraft()
		require.NoError(t, s.SaveDraft(ctx, &d))

		storyID := uuid.New()
		remote.On("Publish", mock.Anything, storygraph.ToSubmission(d)).Return(storyID, nil).Once()
		remote.On("GetStory", mock.Anything, storyID).Return(publishedStory(storyID), nil).Once()

		got, err := s.Publish(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, storyID, got)

		_, err = store.GetDraft(ctx, d.ID)
		assert.ErrorIs(t, err, localstore.ErrNotFound)
		cached, err := store.GetStory(ctx, storyID)
		require.NoError(t, err)
		assert.Equal(t, "Cave", cached.Story.Title)
		remote.AssertExpectations(t)
	})

	t.Run("Remote failure keeps draft", func(t *testing.T) {
		s, remote, store := newTestStudio(t)
		d := validDraft()
		require.NoError(t, s.SaveDraft(ctx, &d))

		authErr := &client.Error{Kind: client.KindAuthentication, Message: "not logged in"}
		remote.On("Publish", mock.Anything, mock.Anything).Return(uuid.Nil, authErr).Once()

		_, err := s.Publish(ctx, d.ID)
		assert.True(t, client.IsKind(err, client.KindAuthentication))
		_, err = store.GetDraft(ctx, d.ID)
		assert.NoError(t, err)
		remote.AssertNotCalled(t, "GetStory", mock.Anything, mock.Anything)
	})

	t.Run("Fetch failure after publish is not an error", func(t *testing.T) {
		s, remote, _ := newTestStudio(t)
		d := validDraft()
		require.NoError(t, s.SaveDraft(ctx, &d))

		storyID := uuid.New()
		remote.On("Publish", mock.Anything, mock.Anything).Return(storyID, nil).Once()
		remote.On("GetStory", mock.Anything, storyID).Return(nil, &client.Error{Kind: client.KindNetwork}).Once()

		got, err := s.Publish(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, storyID, got)
	})
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStudio(t)

	d := validDraft()
	d.Pages = append(d.Pages, storygraph.NewPage("Orphan"))
	d.Pages[2].IsEnding = true
	require.NoError(t, s.SaveDraft(ctx, &d))

	report, err := s.Validate(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, []string{"Page 3 is not reachable from the first page"}, report.Warnings)

	_, err = s.Validate(ctx, uuid.New())
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestOpenStory(t *testing.T) {
	ctx := context.Background()

	t.Run("Caches fetched story", func(t *testing.T) {
		s, remote, store := newTestStudio(t)
		id := uuid.New()
		remote.On("GetStory", mock.Anything, id).Return(publishedStory(id), nil).Once()

		detail, offline, err := s.OpenStory(ctx, id)
		require.NoError(t, err)
		assert.False(t, offline)
		assert.Equal(t, id, detail.Story.ID)

		_, err = store.GetStory(ctx, id)
		assert.NoError(t, err)
	})

	t.Run("Network failure falls back to cache", func(t *testing.T) {
		s, remote, store := newTestStudio(t)
		id := uuid.New()
		require.NoError(t, store.PutStory(ctx, publishedStory(id)))
		remote.On("GetStory", mock.Anything, id).Return(nil, &client.Error{Kind: client.KindNetwork, Err: errors.New("dial tcp")}).Once()

		detail, offline, err := s.OpenStory(ctx, id)
		require.NoError(t, err)
		assert.True(t, offline)

		reader, err := s.Read(detail)
		require.NoError(t, err)
		assert.True(t, reader.Ended())
	})

	t.Run("Not found is not masked by cache", func(t *testing.T) {
		s, remote, store := newTestStudio(t)
		id := uuid.New()
		require.NoError(t, store.PutStory(ctx, publishedStory(id)))
		remote.On("GetStory", mock.Anything, id).Return(nil, &client.Error{Kind: client.KindNotFound}).Once()

		_, _, err := s.OpenStory(ctx, id)
		assert.True(t, client.IsKind(err, client.KindNotFound))
	})

	t.Run("Network failure without cache", func(t *testing.T) {
		s, remote, _ := newTestStudio(t)
		id := uuid.New()
		remote.On("GetStory", mock.Anything, id).Return(nil, &client.Error{Kind: client.KindNetwork}).Once()

		_, _, err := s.OpenStory(ctx, id)
		assert.True(t, client.IsKind(err, client.KindNetwork))
	})
}

func TestSyncCatalog(t *testing.T) {
	ctx := context.Background()
	s, remote, _ := newTestStudio(t)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	page := models.PaginatedResponse[models.StorySummary]{NextCursor: "next"}
	for _, id := range ids {
		page.Data = append(page.Data, models.StorySummary{ID: id})
		remote.On("GetStory", mock.Anything, id).Return(publishedStory(id), nil).Once()
	}
	q := client.StoryQuery{Tag: "horror", Limit: 3}
	remote.On("ListStories", mock.Anything, q).Return(page, nil).Once()

	n, next, err := s.SyncCatalog(ctx, q, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "next", next)

	cached, err := s.CachedStories(ctx, "")
	require.NoError(t, err)
	assert.Len(t, cached, 3)
	remote.AssertExpectations(t)
}

func TestDraftLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStudio(t)

	d, err := s.NewDraft(ctx, "Untitled")
	require.NoError(t, err)
	require.Len(t, d.Pages, 1)

	list, err := s.Drafts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, d.ID, list[0].ID)

	require.NoError(t, s.DiscardDraft(ctx, d.ID))
	_, err = s.Draft(ctx, d.ID)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}
