// Package client - REST клиент storyctl для API историй.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"story-server/internal/models"
	"story-server/internal/tokenstore"

	"github.com/rs/zerolog"
)

type authMode int

const (
	authNone authMode = iota
	authOptional
	authRequired
)

// Client вызывает REST API. Токены берутся из tokenstore и обновляются один раз
// при ответе 401.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     tokenstore.Store
	logger     zerolog.Logger

	refreshMu sync.Mutex
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout задает таймаут запросов.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger задает логгер.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l.With().Str("component", "APIClient").Logger() }
}

// New создает клиента для baseURL (например, "http://localhost:8080").
func New(baseURL string, tokens tokenstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tokens:     tokens,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	auth   authMode
}

// do выполняет запрос и декодирует ответ в out (если не nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	token, hasToken := c.accessToken()
	if r.auth == authRequired && !hasToken {
		return errNotLoggedIn()
	}

	resp, err := c.send(ctx, r, payload, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && r.auth != authNone && hasToken {
		resp.Body.Close()
		if refreshErr := c.refreshAfter(ctx, token); refreshErr != nil {
			c.logger.Debug().Err(refreshErr).Msg("Token refresh failed")
			if r.auth == authOptional {
				// повторяем анонимно
				token = ""
			} else {
				return refreshErr
			}
		} else {
			token, _ = c.accessToken()
		}
		if resp, err = c.send(ctx, r, payload, token); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindUnknown, Status: resp.StatusCode, Message: "failed to decode response", Err: err}
	}
	return nil
}

func (c *Client) send(ctx context.Context, r request, payload []byte, token string) (*http.Response, error) {
	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" && r.auth != authNone {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn().Err(err).Str("method", r.method).Str("path", r.path).Msg("Request failed")
		return nil, &Error{Kind: KindNetwork, Message: "request failed", Err: err}
	}
	c.logger.Debug().
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Request completed")
	return resp, nil
}

func (c *Client) decodeError(resp *http.Response) error {
	apiErr := &Error{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode}
	if resp.StatusCode >= 500 {
		apiErr.Kind = KindNetwork
	}

	var body models.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(data, &body); err == nil && (body.Code != "" || body.Message != "") {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		apiErr.Details = body.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

func (c *Client) accessToken() (string, bool) {
	if c.tokens == nil {
		return "", false
	}
	t, ok := c.tokens.Get()
	if !ok || t.AccessToken == "" {
		return "", false
	}
	return t.AccessToken, true
}

// refreshAfter обновляет токены, если staleAccess все еще текущий. Параллельные
// запросы, получившие 401, обновляют сессию один раз.
func (c *Client) refreshAfter(ctx context.Context, staleAccess string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if current, ok := c.accessToken(); ok && current != staleAccess {
		return nil
	}
	return c.refreshLocked(ctx)
}

func (c *Client) refreshLocked(ctx context.Context) error {
	t, ok := c.tokens.Get()
	if !ok || t.RefreshToken == "" {
		return errNotLoggedIn()
	}

	var td models.TokenDetails
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   map[string]string{"refresh_token": t.RefreshToken},
		auth:   authNone,
	}, &td)
	if err != nil {
		if IsKind(err, KindAuthentication) {
			// refresh токен больше не действителен
			if clearErr := c.tokens.Clear(); clearErr != nil && !errors.Is(clearErr, tokenstore.ErrClosed) {
				c.logger.Warn().Err(clearErr).Msg("Failed to clear token store")
			}
		}
		return err
	}
	return c.tokens.Set(sessionFrom(td, t))
}

func sessionFrom(td models.TokenDetails, prev tokenstore.Tokens) tokenstore.Tokens {
	return tokenstore.Tokens{
		AccessToken:      td.AccessToken,
		RefreshToken:     td.RefreshToken,
		AccessExpiresAt:  unixTime(td.AtExpires),
		RefreshExpiresAt: unixTime(td.RtExpires),
		UserID:           prev.UserID,
		Username:         prev.Username,
	}
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
