package view

import (
	"context"
	"fmt"
	"strings"

	"github.com/fanpulse/pulse/internal/model"
	"github.com/fanpulse/pulse/internal/query"
)

// KeyArticles is the general article listing key; per-owner listings live
// under KeyUserArticles.
func KeyArticles() query.Key { return query.K("articles") }

func KeyUserArticles(userID string) query.Key { return query.K("articles", "user", userID) }

func KeyArticle(id string) query.Key { return query.K("articles", "id", id) }

func KeyUsers() query.Key { return query.K("users") }

func KeyMessages(peerID string) query.Key { return query.K("messages", peerID) }

// Feed is the view at "/dashboard": the public article listing. It stays
// subscribed to the listing key so a create/update/delete from the editor
// refreshes it without a reload.
type Feed struct {
	deps  Deps
	unsub func()
}

func NewFeed(deps Deps) *Feed {
	f := &Feed{deps: deps}
	f.unsub = deps.Cache.AutoRefetch(KeyArticles(), f.fetch)

	return f
}

func (v *Feed) fetch(ctx context.Context) (interface{}, error) {
	return v.deps.API.Articles(ctx)
}

// Load returns the feed, fetching on a cold or invalidated cache.
func (v *Feed) Load(ctx context.Context) ([]model.Article, error) {
	data, err := v.deps.Cache.Fetch(ctx, KeyArticles(), v.fetch)
	if err != nil {
		return nil, err
	}

	return articlesOf(data), nil
}

func (v *Feed) Render() string {
	res := v.deps.Cache.Peek(KeyArticles())
	switch {
	case res.Status == query.StatusPending:
		return "Loading articles..."
	case res.Status == query.StatusError:
		return "Failed to load articles."
	}

	articles := articlesOf(res.Data)
	if len(articles) == 0 {
		return "No articles found."
	}

	var b strings.Builder
	b.WriteString("All Articles\n")
	for _, a := range articles {
		preview := a.Content
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		fmt.Fprintf(&b, "[%s] %s\n    %s\n", a.ID, a.Title, preview)
	}

	return strings.TrimRight(b.String(), "\n")
}

func (v *Feed) Teardown() {
	if v.unsub != nil {
		v.unsub()
	}
}
