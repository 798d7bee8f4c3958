// Package client is the HTTP client for the Pulse API. It issues the raw
// requests and unwraps the response envelopes into typed records; caching
// and invalidation live above it in internal/query.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fanpulse/pulse/internal/model"
)

// Client talks to the Pulse API at Addr (base URL including /api/v1).
type Client struct {
	http.Client
	Addr string

	// TokenSource supplies the bearer token for authenticated requests.
	// Nil or an empty token leaves the request unauthenticated.
	TokenSource func() string

	// Completed, when bound, counts completed requests.
	Completed *metric.BoundInt64Counter

	Log *zap.SugaredLogger
}

func New(addr string, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Client{Addr: addr, Log: log}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Status     string `json:"status"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (http %d)", e.Message, e.StatusCode)
	}

	return fmt.Sprintf("api: %s (http %d)", e.Status, e.StatusCode)
}

// Response envelopes. The /article endpoints wrap their payload in a "data"
// envelope; users and messages come under their own field.
type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type usersEnvelope struct {
	Users []model.User `json:"users"`
}

type messagesEnvelope struct {
	Messages []model.Message `json:"messages"`
}

// LoginResult is the success shape of POST /auth/login.
type LoginResult struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Image    string `json:"image,omitempty"`
}

// ArticleInput is the body of article create/update.
type ArticleInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
	Author  string `json:"author,omitempty"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	var env dataEnvelope
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &env); err != nil {
		return nil, err
	}

	return decodeData[model.User](env)
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var res LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var env usersEnvelope
	if err := c.do(ctx, http.MethodGet, "/auth/users", nil, &env); err != nil {
		return nil, err
	}

	return env.Users, nil
}

func (c *Client) Articles(ctx context.Context) ([]model.Article, error) {
	return c.articleList(ctx, "/article")
}

func (c *Client) UserArticles(ctx context.Context, userID string) ([]model.Article, error) {
	return c.articleList(ctx, "/article/user/"+url.PathEscape(userID))
}

func (c *Client) articleList(ctx context.Context, path string) ([]model.Article, error) {
	var env dataEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	var articles []model.Article
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &articles); err != nil {
			return nil, err
		}
	}

	return articles, nil
}

func (c *Client) Article(ctx context.Context, id string) (*model.Article, error) {
	var env dataEnvelope
	if err := c.do(ctx, http.MethodGet, "/article/"+url.PathEscape(id), nil, &env); err != nil {
		return nil, err
	}

	return decodeData[model.Article](env)
}

func (c *Client) CreateArticle(ctx context.Context, in ArticleInput) (*model.Article, error) {
	var env dataEnvelope
	if err := c.do(ctx, http.MethodPost, "/article/add", in, &env); err != nil {
		return nil, err
	}

	return decodeData[model.Article](env)
}

func (c *Client) UpdateArticle(ctx context.Context, id string, in ArticleInput) (*model.Article, error) {
	var env dataEnvelope
	if err := c.do(ctx, http.MethodPut, "/article/"+url.PathEscape(id), in, &env); err != nil {
		return nil, err
	}

	return decodeData[model.Article](env)
}

func (c *Client) DeleteArticle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/article/"+url.PathEscape(id), nil, nil)
}

func (c *Client) SendMessage(ctx context.Context, senderID, receiverID, text string) (*model.Message, error) {
	body := map[string]string{"senderId": senderID, "receiverId": receiverID, "text": text}
	var env dataEnvelope
	if err := c.do(ctx, http.MethodPost, "/message/send", body, &env); err != nil {
		return nil, err
	}

	return decodeData[model.Message](env)
}

func (c *Client) Messages(ctx context.Context, peerID, currentUserID string) ([]model.Message, error) {
	path := "/message/" + url.PathEscape(peerID) + "?currentUserId=" + url.QueryEscape(currentUserID)

	return c.messageList(ctx, path)
}

func (c *Client) Conversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	return c.messageList(ctx, "/message/conversation/"+url.PathEscape(conversationID))
}

func (c *Client) messageList(ctx context.Context, path string) ([]model.Message, error) {
	var env messagesEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}

	return env.Messages, nil
}

// do issues one request and decodes the JSON answer into out. Failures are
// never retried here; error policy is per-operation and lives in the views.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Addr+path, reader)
	if err != nil {
		return fmt.Errorf("fetching %q: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.TokenSource != nil {
		if token := c.TokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %q: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if c.Completed != nil {
		c.Completed.Add(ctx, 1)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil || (apiErr.Status == "" && apiErr.Message == "") {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		c.Log.Warnw("request failed", "method", method, "path", path, "status", resp.StatusCode)

		return apiErr
	}

	if out == nil {
		return nil
	}

	return json.Unmarshal(raw, out)
}

func decodeData[T any](env dataEnvelope) (*T, error) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, err
	}

	return &v, nil
}
