package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"story-server/internal/models"
	"story-server/internal/storygraph"
	"story-server/internal/tokenstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *tokenstore.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	store := tokenstore.NewMemoryStore()
	return New(srv.URL, store), store
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func loggedIn(t *testing.T, store tokenstore.Store, access string) {
	t.Helper()
	require.NoError(t, store.Set(tokenstore.Tokens{AccessToken: access, RefreshToken: "refresh-1", Username: "reader"}))
}

func TestPublish(t *testing.T) {
	target := 1
	sub := storygraph.Submission{
		Title: "Cave",
		Tags:  []string{},
		Pages: []storygraph.SubmissionPage{
			{Text: "Start", Choices: []storygraph.SubmissionChoice{{Text: "On", TargetPageIndex: &target}}},
			{Text: "End", IsEndingPage: true, Choices: []storygraph.SubmissionChoice{}},
		},
	}

	t.Run("Sends bearer token and body", func(t *testing.T) {
		storyID := uuid.New()
		c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/stories", r.URL.Path)
			assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

			var got storygraph.Submission
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.Equal(t, sub, got)
			writeJSON(w, http.StatusCreated, models.IDResponse{ID: storyID.String()})
		})
		loggedIn(t, store, "access-1")

		id, err := c.Publish(context.Background(), sub)
		require.NoError(t, err)
		assert.Equal(t, storyID, id)
	})

	t.Run("No token means no request", func(t *testing.T) {
		var calls atomic.Int32
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

		_, err := c.Publish(context.Background(), sub)
		assert.True(t, IsKind(err, KindAuthentication))
		assert.Zero(t, calls.Load())
	})

	t.Run("Validation details", func(t *testing.T) {
		c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{
				Code:    models.ErrCodeValidation,
				Message: "Story draft is not valid",
				Details: []string{"Title must not be blank"},
			})
		})
		loggedIn(t, store, "access-1")

		_, err := c.Publish(context.Background(), sub)
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, KindValidation, apiErr.Kind)
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
		assert.Equal(t, []string{"Title must not be blank"}, apiErr.Details)
	})
}

func TestRefreshOn401(t *testing.T) {
	t.Run("Refreshes once and retries", func(t *testing.T) {
		var refreshes atomic.Int32
		c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/refresh":
				refreshes.Add(1)
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "refresh-1", body["refresh_token"])
				writeJSON(w, http.StatusOK, models.TokenDetails{AccessToken: "access-2", RefreshToken: "refresh-2", AtExpires: 1700000000})
			case "/api/me":
				if r.Header.Get("Authorization") != "Bearer access-2" {
					writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeTokenExpired})
					return
				}
				writeJSON(w, http.StatusOK, Profile{Username: "reader"})
			}
		})
		loggedIn(t, store, "access-1")

		me, err := c.Me(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "reader", me.Username)
		assert.EqualValues(t, 1, refreshes.Load())

		session, ok := store.Get()
		require.True(t, ok)
		assert.Equal(t, "access-2", session.AccessToken)
		assert.Equal(t, "refresh-2", session.RefreshToken)
		assert.Equal(t, "reader", session.Username)
		assert.Equal(t, int64(1700000000), session.AccessExpiresAt.Unix())
	})

	t.Run("Rejected refresh clears session", func(t *testing.T) {
		c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeTokenInvalid})
		})
		loggedIn(t, store, "access-1")

		_, err := c.Me(context.Background())
		assert.True(t, IsKind(err, KindAuthentication))
		_, ok := store.Get()
		assert.False(t, ok)
	})

	t.Run("Optional auth falls back to anonymous", func(t *testing.T) {
		storyID := uuid.New()
		c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/auth/refresh":
				writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeTokenInvalid})
			case r.Header.Get("Authorization") != "":
				writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeTokenExpired})
			default:
				writeJSON(w, http.StatusOK, models.StoryDetail{Story: storygraph.Story{ID: storyID}})
			}
		})
		loggedIn(t, store, "access-1")

		detail, err := c.GetStory(context.Background(), storyID)
		require.NoError(t, err)
		assert.Equal(t, storyID, detail.Story.ID)
	})
}

func TestErrors(t *testing.T) {
	t.Run("Transport failure is network kind", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := New(srv.URL, tokenstore.NewMemoryStore())

		_, err := c.ListTags(context.Background())
		assert.True(t, IsKind(err, KindNetwork))
	})

	t.Run("Server error is network kind", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		})
		_, err := c.ListTags(context.Background())
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, KindNetwork, apiErr.Kind)
		assert.Equal(t, "boom", apiErr.Message)
	})

	t.Run("Not found", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Code: models.ErrCodeNotFound, Message: "Story not found"})
		})
		_, err := c.GetStory(context.Background(), uuid.New())
		assert.True(t, IsKind(err, KindNotFound))
		assert.ErrorContains(t, err, "Story not found")
	})

	t.Run("Cancelled context abandons result", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []models.TagCount{})
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.ListTags(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSession(t *testing.T) {
	t.Run("Login stores tokens and user id", func(t *testing.T) {
		userID := uuid.New()
		c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/login":
				writeJSON(w, http.StatusOK, models.TokenDetails{AccessToken: "a", RefreshToken: "r"})
			case "/api/me":
				assert.Equal(t, "Bearer a", r.Header.Get("Authorization"))
				writeJSON(w, http.StatusOK, Profile{ID: userID, Username: "reader"})
			}
		})

		session, err := c.Login(context.Background(), "reader", "password1")
		require.NoError(t, err)
		assert.Equal(t, userID, session.UserID)

		stored, ok := store.Get()
		require.True(t, ok)
		assert.Equal(t, session, stored)
	})

	t.Run("Logout clears even when server fails", func(t *testing.T) {
		c, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/logout", r.URL.Path)
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Code: models.ErrCodeInternal})
		})
		loggedIn(t, store, "access-1")

		err := c.Logout(context.Background())
		assert.Error(t, err)
		_, ok := store.Get()
		assert.False(t, ok)
	})

	t.Run("Story query parameters", func(t *testing.T) {
		author := uuid.New()
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "horror", q.Get("tag"))
			assert.Equal(t, author.String(), q.Get("author"))
			assert.Equal(t, "cave", q.Get("q"))
			assert.Equal(t, "next", q.Get("cursor"))
			assert.Equal(t, "5", q.Get("limit"))
			writeJSON(w, http.StatusOK, models.PaginatedResponse[models.StorySummary]{Data: []models.StorySummary{{Title: "Cave"}}})
		})

		page, err := c.ListStories(context.Background(), StoryQuery{Tag: "horror", AuthorID: author, Query: "cave", Cursor: "next", Limit: 5})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
	})
}
