package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"story-server/internal/interfaces/mocks"
	"story-server/internal/models"
	"story-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockAuthService - testify мок AuthService для HTTP тестов.
type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	args := m.Called(ctx, username, email, password)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*models.TokenDetails, error) {
	args := m.Called(ctx, username, password)
	if td := args.Get(0); td != nil {
		return td.(*models.TokenDetails), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, userID uuid.UUID, accessUUID, refreshToken string) error {
	return m.Called(ctx, userID, accessUUID, refreshToken).Error(0)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
	args := m.Called(ctx, refreshToken)
	if td := args.Get(0); td != nil {
		return td.(*models.TokenDetails), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*models.Claims, error) {
	args := m.Called(ctx, tokenString)
	if cl := args.Get(0); cl != nil {
		return cl.(*models.Claims), args.Error(1)
	}
	return nil, args.Error(1)
}

type testEnv struct {
	router  *gin.Engine
	auth    *mockAuthService
	stories *mocks.StoryRepository
	likes   *mocks.LikeRepository
	userID  uuid.UUID
}

const goodToken = "good-token"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		auth:    new(mockAuthService),
		stories: new(mocks.StoryRepository),
		likes:   new(mocks.LikeRepository),
		userID:  uuid.New(),
	}
	env.auth.On("VerifyAccessToken", mock.Anything, goodToken).
		Return(&models.Claims{UserID: env.userID}, nil).Maybe()
	env.auth.On("VerifyAccessToken", mock.Anything, mock.Anything).
		Return(nil, models.ErrTokenInvalid).Maybe()

	logger := zap.NewNop()
	h := NewHandler(Services{
		Auth:       env.auth,
		Publishing: service.NewPublishingService(env.stories, nil, nil, logger),
		Browsing:   service.NewStoryBrowsingService(env.stories, env.likes, logger),
		Likes:      service.NewLikeService(env.likes, env.stories, nil, logger),
	}, logger)

	env.router = gin.New()
	h.RegisterRoutes(env.router, nil)
	return env
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestPublishEndpoint(t *testing.T) {
	valid := map[string]any{
		"title": "Cave",
		"tags":  []string{"Horror"},
		"pages": []map[string]any{
			{"text": "Start", "isEndingPage": false, "choices": []map[string]any{{"text": "On", "targetPageIndex": 1}}},
			{"text": "End", "isEndingPage": true, "choices": []any{}},
		},
	}

	t.Run("Requires auth", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/stories", "", valid)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, models.ErrCodeUnauthorized, decodeError(t, w).Code)
	})

	t.Run("Invalid token", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/stories", "bad", valid)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, models.ErrCodeTokenInvalid, decodeError(t, w).Code)
	})

	t.Run("Created", func(t *testing.T) {
		env := newTestEnv(t)
		env.stories.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

		w := env.do(http.MethodPost, "/api/stories", goodToken, valid)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp models.IDResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		_, err := uuid.Parse(resp.ID)
		assert.NoError(t, err)
	})

	t.Run("Validator problems become 422 details", func(t *testing.T) {
		env := newTestEnv(t)
		invalid := map[string]any{
			"title": "",
			"pages": []map[string]any{
				{"text": "Start", "isEndingPage": false, "choices": []map[string]any{{"text": "On", "targetPageIndex": nil}}},
			},
		}
		w := env.do(http.MethodPost, "/api/stories", goodToken, invalid)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, models.ErrCodeValidation, resp.Code)
		assert.Equal(t, []string{
			"Title must not be blank",
			"Page 1, choice 1: target page is not set",
			"Story must contain an ending page",
		}, resp.Details)
		env.stories.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestStoryEndpoints(t *testing.T) {
	t.Run("Bad id", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodGet, "/api/stories/not-a-uuid", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Not found", func(t *testing.T) {
		env := newTestEnv(t)
		id := uuid.New()
		env.stories.On("GetByID", mock.Anything, id).Return(nil, models.ErrStoryNotFound).Once()

		w := env.do(http.MethodGet, "/api/stories/"+id.String(), "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, models.ErrCodeNotFound, decodeError(t, w).Code)
	})

	t.Run("Optional auth marks liked story", func(t *testing.T) {
		env := newTestEnv(t)
		id := uuid.New()
		env.stories.On("GetByID", mock.Anything, id).Return(&models.StoryDetail{}, nil).Once()
		env.likes.On("CheckLike", mock.Anything, env.userID, id).Return(true, nil).Once()

		w := env.do(http.MethodGet, "/api/stories/"+id.String(), goodToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var detail models.StoryDetail
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
		assert.True(t, detail.IsLiked)
	})

	t.Run("Bad limit", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodGet, "/api/stories?limit=abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("List passes filter", func(t *testing.T) {
		env := newTestEnv(t)
		env.stories.On("List", mock.Anything, models.StoryFilter{Tag: "horror", Query: "cave"}, "abc", 5).
			Return([]models.StorySummary{{Title: "Cave"}}, "next", nil).Once()

		w := env.do(http.MethodGet, "/api/stories?tag=horror&q=cave&cursor=abc&limit=5", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp models.PaginatedResponse[models.StorySummary]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "next", resp.NextCursor)
		require.Len(t, resp.Data, 1)
	})

	t.Run("Double like conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		id := uuid.New()
		env.likes.On("AddLike", mock.Anything, env.userID, id).Return(models.ErrLikeAlreadyExists).Once()

		w := env.do(http.MethodPost, "/api/stories/"+id.String()+"/like", goodToken, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestAuthEndpoints(t *testing.T) {
	t.Run("Register binding errors are detailed", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "  ", "email": "nope"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, models.ErrCodeBadRequest, resp.Code)
		assert.Contains(t, resp.Details, "Username is required")
		assert.Contains(t, resp.Details, "Email must be a valid email")
	})

	t.Run("Register validation from service", func(t *testing.T) {
		env := newTestEnv(t)
		env.auth.On("Register", mock.Anything, "reader", "r@example.com", "short").
			Return(nil, service.ValidatePassword("short")).Once()

		w := env.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "reader", "email": "r@example.com", "password": "short"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, models.ErrCodeValidation, resp.Code)
		assert.Equal(t, "Password must be between 8 and 100 characters", resp.Message)
	})

	t.Run("Wrong credentials", func(t *testing.T) {
		env := newTestEnv(t)
		env.auth.On("Login", mock.Anything, "reader", "password1").Return(nil, models.ErrInvalidCredentials).Once()

		w := env.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "reader", "password": "password1"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, models.ErrCodeWrongCredentials, decodeError(t, w).Code)
	})

	t.Run("Logout without body", func(t *testing.T) {
		env := newTestEnv(t)
		env.auth.On("Logout", mock.Anything, env.userID, "", "").Return(nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+goodToken)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		env.auth.AssertExpectations(t)
	})
}
