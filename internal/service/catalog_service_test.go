package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"story-server/internal/interfaces/mocks"
	"story-server/internal/models"
	"story-server/internal/service"
	"story-server/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBrowsing(t *testing.T) {
	ctx := context.Background()
	storyID, viewerID := uuid.New(), uuid.New()

	t.Run("List sanitizes limit and never returns nil", func(t *testing.T) {
		stories := new(mocks.StoryRepository)
		svc := service.NewStoryBrowsingService(stories, new(mocks.LikeRepository), zap.NewNop())
		filter := models.StoryFilter{Tag: "horror"}
		stories.On("List", ctx, filter, "", utils.DefaultPageLimit).Return(nil, "", nil).Once()

		list, next, err := svc.ListStories(ctx, filter, "", 0)
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, next)
		stories.AssertExpectations(t)
	})

	t.Run("Get fills isLiked for a viewer", func(t *testing.T) {
		stories := new(mocks.StoryRepository)
		likes := new(mocks.LikeRepository)
		svc := service.NewStoryBrowsingService(stories, likes, zap.NewNop())
		stories.On("GetByID", ctx, storyID).Return(&models.StoryDetail{}, nil).Once()
		likes.On("CheckLike", ctx, viewerID, storyID).Return(true, nil).Once()

		detail, err := svc.GetStory(ctx, storyID, viewerID)
		require.NoError(t, err)
		assert.True(t, detail.IsLiked)
	})

	t.Run("Anonymous get skips like lookup", func(t *testing.T) {
		stories := new(mocks.StoryRepository)
		likes := new(mocks.LikeRepository)
		svc := service.NewStoryBrowsingService(stories, likes, zap.NewNop())
		stories.On("GetByID", ctx, storyID).Return(&models.StoryDetail{}, nil).Once()

		detail, err := svc.GetStory(ctx, storyID, uuid.Nil)
		require.NoError(t, err)
		assert.False(t, detail.IsLiked)
		likes.AssertNotCalled(t, "CheckLike", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Like lookup failure still returns story", func(t *testing.T) {
		stories := new(mocks.StoryRepository)
		likes := new(mocks.LikeRepository)
		svc := service.NewStoryBrowsingService(stories, likes, zap.NewNop())
		stories.On("GetByID", ctx, storyID).Return(&models.StoryDetail{}, nil).Once()
		likes.On("CheckLike", ctx, viewerID, storyID).Return(false, errors.New("db down")).Once()

		_, err := svc.GetStory(ctx, storyID, viewerID)
		assert.NoError(t, err)
	})
}

func TestReviews(t *testing.T) {
	ctx := context.Background()
	storyID, authorID, readerID := uuid.New(), uuid.New(), uuid.New()

	newSvc := func() (service.ReviewService, *mocks.ReviewRepository, *mocks.StoryRepository) {
		reviews := new(mocks.ReviewRepository)
		stories := new(mocks.StoryRepository)
		return service.NewReviewService(reviews, stories, nil, nil, zap.NewNop()), reviews, stories
	}

	t.Run("Adds review", func(t *testing.T) {
		svc, reviews, stories := newSvc()
		stories.On("GetAuthorID", ctx, storyID).Return(authorID, nil).Once()
		reviews.On("Create", ctx, mock.MatchedBy(func(r *models.Review) bool {
			return r.Rating == 4 && r.Text == "Nice" && r.UserID == readerID
		})).Run(func(args mock.Arguments) { args.Get(1).(*models.Review).ID = uuid.New() }).Return(nil).Once()
		reviews.On("GetByID", ctx, mock.Anything).Return(&models.Review{AuthorName: "reader", Rating: 4}, nil).Once()

		review, err := svc.AddReview(ctx, readerID, storyID, 4, "  Nice ")
		require.NoError(t, err)
		assert.Equal(t, "reader", review.AuthorName)
		reviews.AssertExpectations(t)
	})

	t.Run("Rating out of range", func(t *testing.T) {
		svc, _, _ := newSvc()
		for _, rating := range []int{0, 6, -1} {
			_, err := svc.AddReview(ctx, readerID, storyID, rating, "")
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		}
	})

	t.Run("Text too long", func(t *testing.T) {
		svc, _, _ := newSvc()
		_, err := svc.AddReview(ctx, readerID, storyID, 3, strings.Repeat("я", models.MaxReviewLength+1))
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("Author cannot review own story", func(t *testing.T) {
		svc, reviews, stories := newSvc()
		stories.On("GetAuthorID", ctx, storyID).Return(authorID, nil).Once()

		_, err := svc.AddReview(ctx, authorID, storyID, 5, "")
		assert.ErrorIs(t, err, models.ErrCannotReviewOwn)
		reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Second review conflicts", func(t *testing.T) {
		svc, reviews, stories := newSvc()
		stories.On("GetAuthorID", ctx, storyID).Return(authorID, nil).Once()
		reviews.On("Create", ctx, mock.Anything).Return(models.ErrAlreadyReviewed).Once()

		_, err := svc.AddReview(ctx, readerID, storyID, 5, "")
		assert.ErrorIs(t, err, models.ErrAlreadyReviewed)
	})

	t.Run("Only owner deletes", func(t *testing.T) {
		svc, reviews, _ := newSvc()
		reviewID := uuid.New()
		reviews.On("GetByID", ctx, reviewID).Return(&models.Review{ID: reviewID, UserID: readerID}, nil)

		assert.ErrorIs(t, svc.DeleteReview(ctx, reviewID, uuid.New()), models.ErrForbidden)

		reviews.On("Delete", ctx, reviewID).Return(nil).Once()
		assert.NoError(t, svc.DeleteReview(ctx, reviewID, readerID))
		reviews.AssertExpectations(t)
	})

	t.Run("Listing reviews of a missing story", func(t *testing.T) {
		svc, _, stories := newSvc()
		stories.On("GetAuthorID", ctx, storyID).Return(uuid.Nil, models.ErrStoryNotFound).Once()

		_, _, err := svc.ListReviews(ctx, storyID, "", 10)
		assert.ErrorIs(t, err, models.ErrStoryNotFound)
	})
}

func TestLikes(t *testing.T) {
	ctx := context.Background()
	storyID, userID := uuid.New(), uuid.New()

	t.Run("Like broadcasts", func(t *testing.T) {
		likes := new(mocks.LikeRepository)
		broadcaster := new(mocks.Broadcaster)
		svc := service.NewLikeService(likes, new(mocks.StoryRepository), broadcaster, zap.NewNop())
		likes.On("AddLike", ctx, userID, storyID).Return(nil).Once()
		broadcaster.On("Broadcast", mock.MatchedBy(func(e models.StoryEvent) bool {
			return e.Type == models.EventStoryLiked
		})).Once()

		require.NoError(t, svc.Like(ctx, userID, storyID))
		broadcaster.AssertExpectations(t)
	})

	t.Run("Double like conflicts", func(t *testing.T) {
		likes := new(mocks.LikeRepository)
		svc := service.NewLikeService(likes, new(mocks.StoryRepository), nil, zap.NewNop())
		likes.On("AddLike", ctx, userID, storyID).Return(models.ErrLikeAlreadyExists).Once()

		assert.ErrorIs(t, svc.Like(ctx, userID, storyID), models.ErrLikeAlreadyExists)
	})

	t.Run("Liked list keeps like order", func(t *testing.T) {
		likes := new(mocks.LikeRepository)
		stories := new(mocks.StoryRepository)
		svc := service.NewLikeService(likes, stories, nil, zap.NewNop())
		ids := []uuid.UUID{uuid.New(), uuid.New()}
		likes.On("ListLikedStoryIDs", ctx, userID, "", 5).Return(ids, "next", nil).Once()
		stories.On("ListByIDs", ctx, ids).Return([]models.StorySummary{{ID: ids[0]}, {ID: ids[1]}}, nil).Once()

		list, next, err := svc.ListLiked(ctx, userID, "", 5)
		require.NoError(t, err)
		assert.Equal(t, "next", next)
		require.Len(t, list, 2)
		assert.Equal(t, ids[0], list[0].ID)
	})

	t.Run("Empty liked list", func(t *testing.T) {
		likes := new(mocks.LikeRepository)
		stories := new(mocks.StoryRepository)
		svc := service.NewLikeService(likes, stories, nil, zap.NewNop())
		likes.On("ListLikedStoryIDs", ctx, userID, "", utils.DefaultPageLimit).Return(nil, "", nil).Once()

		list, _, err := svc.ListLiked(ctx, userID, "", 1000)
		require.NoError(t, err)
		assert.Empty(t, list)
		stories.AssertNotCalled(t, "ListByIDs", mock.Anything, mock.Anything)
	})
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	str := func(s string) *string { return &s }

	t.Run("Trims and saves", func(t *testing.T) {
		users := new(mocks.UserRepository)
		svc := service.NewProfileService(users, zap.NewNop())
		users.On("UpdateProfile", ctx, userID, mock.MatchedBy(func(u models.ProfileUpdate) bool {
			return *u.Signature == "hello" && *u.AvatarURL == "https://cdn.example.com/a.png" && u.DisplayName == nil
		})).Return(&models.User{ID: userID, Signature: "hello"}, nil).Once()

		user, err := svc.UpdateProfile(ctx, userID, models.ProfileUpdate{
			Signature: str(" hello "),
			AvatarURL: str("https://cdn.example.com/a.png"),
		})
		require.NoError(t, err)
		assert.Equal(t, "hello", user.Signature)
		users.AssertExpectations(t)
	})

	t.Run("Rejects invalid fields", func(t *testing.T) {
		users := new(mocks.UserRepository)
		svc := service.NewProfileService(users, zap.NewNop())
		bad := []models.ProfileUpdate{
			{Signature: str(strings.Repeat("x", models.MaxSignatureLen+1))},
			{DisplayName: str(strings.Repeat("x", models.MaxDisplayName+1))},
			{AvatarURL: str("/relative/path.png")},
			{AvatarURL: str("ftp://example.com/a.png")},
		}
		for _, update := range bad {
			_, err := svc.UpdateProfile(ctx, userID, update)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		}
		users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Public profile hides email", func(t *testing.T) {
		users := new(mocks.UserRepository)
		svc := service.NewProfileService(users, zap.NewNop())
		users.On("GetUserByID", ctx, userID).Return(&models.User{ID: userID, Username: "reader", Email: "r@example.com"}, nil).Once()

		profile, err := svc.GetPublicProfile(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "reader", profile.Username)
	})
}
