package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"story-server/internal/models"
	"story-server/internal/storygraph"
	"story-server/internal/tokenstore"

	"github.com/google/uuid"
)

// Account - зарегистрированный пользователь.
type Account struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// Profile - профиль текущего пользователя.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Signature   string    `json:"signature"`
	AvatarURL   string    `json:"avatar_url"`
	Roles       []string  `json:"roles,omitempty"`
}

// StoryQuery - фильтр и страница каталога.
type StoryQuery struct {
	Tag      string
	AuthorID uuid.UUID
	Query    string
	Cursor   string
	Limit    int
}

func (q StoryQuery) values() url.Values {
	v := url.Values{}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}
	if q.AuthorID != uuid.Nil {
		v.Set("author", q.AuthorID.String())
	}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	setPage(v, q.Cursor, q.Limit)
	return v
}

func setPage(v url.Values, cursor string, limit int) {
	if cursor != "" {
		v.Set("cursor", cursor)
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
}

func (c *Client) Register(ctx context.Context, username, email, password string) (*Account, error) {
	var acc Account
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   map[string]string{"username": username, "email": email, "password": password},
	}, &acc)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// Login выполняет вход и сохраняет токены в хранилище.
func (c *Client) Login(ctx context.Context, username, password string) (tokenstore.Tokens, error) {
	var td models.TokenDetails
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"username": username, "password": password},
	}, &td)
	if err != nil {
		return tokenstore.Tokens{}, err
	}

	session := sessionFrom(td, tokenstore.Tokens{Username: username})
	if err := c.tokens.Set(session); err != nil {
		return tokenstore.Tokens{}, fmt.Errorf("failed to store session: %w", err)
	}

	if me, err := c.Me(ctx); err == nil {
		session.UserID = me.ID
		if err := c.tokens.Set(session); err != nil {
			return tokenstore.Tokens{}, fmt.Errorf("failed to store session: %w", err)
		}
	} else {
		c.logger.Debug().Err(err).Msg("Failed to fetch profile after login")
	}
	return session, nil
}

// Logout отзывает сессию на сервере и очищает хранилище. Локальная сессия
// очищается даже при ошибке сервера.
func (c *Client) Logout(ctx context.Context) error {
	t, ok := c.tokens.Get()
	if !ok {
		return nil
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/logout",
		body:   map[string]string{"refresh_token": t.RefreshToken},
		auth:   authRequired,
	}, nil)
	if clearErr := c.tokens.Clear(); clearErr != nil {
		return errors.Join(err, clearErr)
	}
	if IsKind(err, KindAuthentication) {
		return nil
	}
	return err
}

// Refresh принудительно обновляет пару токенов.
func (c *Client) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/me", auth: authRequired}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, request{method: http.MethodPut, path: "/api/me", body: update, auth: authRequired}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) PublicProfile(ctx context.Context, userID uuid.UUID) (*models.PublicProfile, error) {
	var p models.PublicProfile
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/users/" + userID.String()}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Publish отправляет историю и возвращает присвоенный сервером ID.
func (c *Client) Publish(ctx context.Context, sub storygraph.Submission) (uuid.UUID, error) {
	var resp models.IDResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/stories", body: sub, auth: authRequired}, &resp); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(resp.ID)
	if err != nil {
		return uuid.Nil, &Error{Kind: KindUnknown, Message: "server returned invalid story id", Err: err}
	}
	return id, nil
}

func (c *Client) ListStories(ctx context.Context, q StoryQuery) (models.PaginatedResponse[models.StorySummary], error) {
	var page models.PaginatedResponse[models.StorySummary]
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/stories", query: q.values()}, &page)
	return page, err
}

// GetStory возвращает историю. Если пользователь вошел, заполняется IsLiked.
func (c *Client) GetStory(ctx context.Context, storyID uuid.UUID) (*models.StoryDetail, error) {
	var detail models.StoryDetail
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/stories/" + storyID.String(), auth: authOptional}, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) DeleteStory(ctx context.Context, storyID uuid.UUID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/stories/" + storyID.String(), auth: authRequired}, nil)
}

func (c *Client) ListTags(ctx context.Context) ([]models.TagCount, error) {
	var tags []models.TagCount
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/tags"}, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *Client) ListReviews(ctx context.Context, storyID uuid.UUID, cursor string, limit int) (models.PaginatedResponse[models.Review], error) {
	v := url.Values{}
	setPage(v, cursor, limit)
	var page models.PaginatedResponse[models.Review]
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/stories/" + storyID.String() + "/reviews", query: v}, &page)
	return page, err
}

func (c *Client) AddReview(ctx context.Context, storyID uuid.UUID, rating int, text string) (*models.Review, error) {
	var review models.Review
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/stories/" + storyID.String() + "/reviews",
		body:   map[string]any{"rating": rating, "text": text},
		auth:   authRequired,
	}, &review)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (c *Client) DeleteReview(ctx context.Context, reviewID uuid.UUID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/reviews/" + reviewID.String(), auth: authRequired}, nil)
}

func (c *Client) Like(ctx context.Context, storyID uuid.UUID) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/api/stories/" + storyID.String() + "/like", auth: authRequired}, nil)
}

func (c *Client) Unlike(ctx context.Context, storyID uuid.UUID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/stories/" + storyID.String() + "/like", auth: authRequired}, nil)
}

func (c *Client) ListLiked(ctx context.Context, cursor string, limit int) (models.PaginatedResponse[models.StorySummary], error) {
	v := url.Values{}
	setPage(v, cursor, limit)
	var page models.PaginatedResponse[models.StorySummary]
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/me/likes", query: v, auth: authRequired}, &page)
	return page, err
}
