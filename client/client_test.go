package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanpulse/pulse/internal/stubserver"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	r := chi.NewRouter()
	r.Mount("/api/v1", stubserver.New(nil, []byte("test-secret")).Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return New(srv.URL+"/api/v1", nil)
}

func register(t *testing.T, c *Client, name, email string) (userID string) {
	t.Helper()

	user, err := c.Register(context.Background(), RegisterRequest{
		Name:     name,
		Phone:    "555-0100",
		Email:    email,
		Username: name,
		Password: "hunter2",
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)

	return user.ID
}

func login(t *testing.T, c *Client, email string) *LoginResult {
	t.Helper()

	res, err := c.Login(context.Background(), email, "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	require.NotEmpty(t, res.UserID)
	c.TokenSource = func() string { return res.Token }

	return res
}

func TestRegisterAndLogin(t *testing.T) {
	c := newTestClient(t)

	id := register(t, c, "peter", "peter@example.com")
	res := login(t, c, "peter@example.com")
	assert.Equal(t, id, res.UserID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	c := newTestClient(t)
	register(t, c, "peter", "peter@example.com")

	_, err := c.Login(context.Background(), "peter@example.com", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestUsers(t *testing.T) {
	c := newTestClient(t)
	register(t, c, "peter", "peter@example.com")
	register(t, c, "julia", "julia@example.com")

	users, err := c.Users(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestArticleLifecycle(t *testing.T) {
	c := newTestClient(t)
	register(t, c, "peter", "peter@example.com")
	res := login(t, c, "peter@example.com")
	ctx := context.Background()

	created, err := c.CreateArticle(ctx, ArticleInput{Title: "Hi", Content: "World", Author: res.UserID})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID, "server assigns the id")
	assert.Equal(t, res.UserID, created.Author)

	all, err := c.Articles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	mine, err := c.UserArticles(ctx, res.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	got, err := c.Article(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hi", got.Title)

	updated, err := c.UpdateArticle(ctx, created.ID, ArticleInput{Title: "Hi again", Content: "World"})
	require.NoError(t, err)
	assert.Equal(t, "Hi again", updated.Title)
	assert.Equal(t, created.ID, updated.ID)

	require.NoError(t, c.DeleteArticle(ctx, created.ID))

	all, err = c.Articles(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = c.Article(ctx, created.ID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestArticleWritesRequireToken(t *testing.T) {
	c := newTestClient(t)

	_, err := c.CreateArticle(context.Background(), ArticleInput{Title: "Hi", Content: "World"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestMessages(t *testing.T) {
	c := newTestClient(t)
	register(t, c, "peter", "peter@example.com")
	register(t, c, "julia", "julia@example.com")
	res := login(t, c, "peter@example.com")
	ctx := context.Background()

	// Figure out julia's id from the listing.
	users, err := c.Users(ctx)
	require.NoError(t, err)
	var julia string
	for _, u := range users {
		if u.Name == "julia" {
			julia = u.ID
		}
	}
	require.NotEmpty(t, julia)

	sent, err := c.SendMessage(ctx, res.UserID, julia, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, sent.ID)

	msgs, err := c.Messages(ctx, julia, res.UserID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, res.UserID, msgs[0].SenderID)

	conv, err := c.Conversation(ctx, stubserver.ConversationID(res.UserID, julia))
	require.NoError(t, err)
	require.Len(t, conv, 1)
	assert.Equal(t, "hello", conv[0].Text)
}

func TestSendMessageSenderComesFromToken(t *testing.T) {
	c := newTestClient(t)
	peter := register(t, c, "peter", "peter@example.com")
	julia := register(t, c, "julia", "julia@example.com")
	login(t, c, "peter@example.com")

	// Posting julia's id as the sender must not let peter impersonate her.
	sent, err := c.SendMessage(context.Background(), julia, julia, "hello")
	require.NoError(t, err)
	assert.Equal(t, peter, sent.SenderID)
}

func TestEmptyListsAreNotErrors(t *testing.T) {
	c := newTestClient(t)
	register(t, c, "peter", "peter@example.com")
	res := login(t, c, "peter@example.com")
	ctx := context.Background()

	articles, err := c.Articles(ctx)
	require.NoError(t, err)
	assert.Empty(t, articles)

	msgs, err := c.Messages(ctx, "nobody", res.UserID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
