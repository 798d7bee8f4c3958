// Package view holds the client's views: each one binds form state to
// queries and mutations on the shared cache and renders a status-derived
// textual UI (loading, error, empty, populated).
package view

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fanpulse/pulse/client"
	"github.com/fanpulse/pulse/internal/model"
	"github.com/fanpulse/pulse/internal/query"
	"github.com/fanpulse/pulse/internal/session"
)

// ErrValidation marks a client-side validation failure. It blocks the
// submission and never reaches the network; the view carries the inline
// notice.
var ErrValidation = errors.New("validation failed")

// Deps is the shared wiring injected into every view. Session is the one
// process-wide store; everything else is per-process too, but views never
// own any of it.
type Deps struct {
	API          *client.Client
	Cache        *query.Cache
	Session      *session.Store
	Log          *zap.SugaredLogger
	Clock        query.Clock
	PollInterval time.Duration
}

func (d Deps) pollInterval() time.Duration {
	if d.PollInterval > 0 {
		return d.PollInterval
	}

	return 3 * time.Second
}

// View is a mounted screen. Teardown must release everything the view
// acquired: subscriptions and any running poller.
type View interface {
	Render() string
	Teardown()
}

// Navigator performs client-side navigation on mutation success.
type Navigator interface {
	Navigate(path string) error
}

// Cached data is stored untyped; these helpers recover the record slices,
// treating a gated empty success (nil) as an empty list.
func articlesOf(data interface{}) []model.Article {
	if data == nil {
		return nil
	}

	return data.([]model.Article)
}

func messagesOf(data interface{}) []model.Message {
	if data == nil {
		return nil
	}

	return data.([]model.Message)
}

func usersOf(data interface{}) []model.User {
	if data == nil {
		return nil
	}

	return data.([]model.User)
}
