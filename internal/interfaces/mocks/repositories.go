package mocks

import (
	"context"

	"story-server/internal/interfaces"
	"story-server/internal/models"
	"story-server/internal/storygraph"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var (
	_ interfaces.UserRepository   = (*UserRepository)(nil)
	_ interfaces.TokenRepository  = (*TokenRepository)(nil)
	_ interfaces.StoryRepository  = (*StoryRepository)(nil)
	_ interfaces.ReviewRepository = (*ReviewRepository)(nil)
	_ interfaces.LikeRepository   = (*LikeRepository)(nil)
)

// Mock UserRepository
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) (*models.User, error) {
	args := m.Called(ctx, id, update)
	return userOrNil(args.Get(0)), args.Error(1)
}

func userOrNil(v any) *models.User {
	if v == nil {
		return nil
	}
	return v.(*models.User)
}

// Mock TokenRepository
type TokenRepository struct {
	mock.Mock
}

func (m *TokenRepository) SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error {
	args := m.Called(ctx, userID, td)
	return args.Error(0)
}

func (m *TokenRepository) DeleteTokens(ctx context.Context, userID uuid.UUID, accessUUID, refreshUUID string) (int64, error) {
	args := m.Called(ctx, userID, accessUUID, refreshUUID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TokenRepository) GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error) {
	args := m.Called(ctx, accessUUID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *TokenRepository) GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error) {
	args := m.Called(ctx, refreshUUID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// Mock StoryRepository
type StoryRepository struct {
	mock.Mock
}

func (m *StoryRepository) Create(ctx context.Context, story *storygraph.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}

func (m *StoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StoryDetail, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.StoryDetail), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StoryRepository) List(ctx context.Context, filter models.StoryFilter, cursor string, limit int) ([]models.StorySummary, string, error) {
	args := m.Called(ctx, filter, cursor, limit)
	var out []models.StorySummary
	if v := args.Get(0); v != nil {
		out = v.([]models.StorySummary)
	}
	return out, args.String(1), args.Error(2)
}

func (m *StoryRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.StorySummary, error) {
	args := m.Called(ctx, ids)
	var out []models.StorySummary
	if v := args.Get(0); v != nil {
		out = v.([]models.StorySummary)
	}
	return out, args.Error(1)
}

func (m *StoryRepository) Delete(ctx context.Context, id, authorID uuid.UUID) error {
	args := m.Called(ctx, id, authorID)
	return args.Error(0)
}

func (m *StoryRepository) GetAuthorID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *StoryRepository) ListTags(ctx context.Context) ([]models.TagCount, error) {
	args := m.Called(ctx)
	var out []models.TagCount
	if v := args.Get(0); v != nil {
		out = v.([]models.TagCount)
	}
	return out, args.Error(1)
}

// Mock ReviewRepository
type ReviewRepository struct {
	mock.Mock
}

func (m *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *ReviewRepository) ListByStory(ctx context.Context, storyID uuid.UUID, cursor string, limit int) ([]models.Review, string, error) {
	args := m.Called(ctx, storyID, cursor, limit)
	var out []models.Review
	if v := args.Get(0); v != nil {
		out = v.([]models.Review)
	}
	return out, args.String(1), args.Error(2)
}

func (m *ReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Review), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock LikeRepository
type LikeRepository struct {
	mock.Mock
}

func (m *LikeRepository) AddLike(ctx context.Context, userID, storyID uuid.UUID) error {
	args := m.Called(ctx, userID, storyID)
	return args.Error(0)
}

func (m *LikeRepository) RemoveLike(ctx context.Context, userID, storyID uuid.UUID) error {
	args := m.Called(ctx, userID, storyID)
	return args.Error(0)
}

func (m *LikeRepository) CheckLike(ctx context.Context, userID, storyID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, storyID)
	return args.Bool(0), args.Error(1)
}

func (m *LikeRepository) ListLikedStoryIDs(ctx context.Context, userID uuid.UUID, cursor string, limit int) ([]uuid.UUID, string, error) {
	args := m.Called(ctx, userID, cursor, limit)
	var out []uuid.UUID
	if v := args.Get(0); v != nil {
		out = v.([]uuid.UUID)
	}
	return out, args.String(1), args.Error(2)
}
