package view

import (
	"context"
	"fmt"

	"github.com/fanpulse/pulse/internal/model"
	"github.com/fanpulse/pulse/internal/query"
)

// Detail is the view at "/article/:id". The fetch is gated on the article
// id from the route.
type Detail struct {
	deps Deps
	id   string
}

func NewDetail(deps Deps, id string) *Detail {
	return &Detail{deps: deps, id: id}
}

func (v *Detail) Load(ctx context.Context) (*model.Article, error) {
	data, err := v.deps.Cache.FetchGated(ctx, KeyArticle(v.id), v.id, func(ctx context.Context) (interface{}, error) {
		return v.deps.API.Article(ctx, v.id)
	})
	if err != nil || data == nil {
		return nil, err
	}

	return data.(*model.Article), nil
}

func (v *Detail) Render() string {
	if v.id == "" {
		return "Article not found."
	}

	res := v.deps.Cache.Peek(KeyArticle(v.id))
	switch res.Status {
	case query.StatusPending:
		return "Loading article..."
	case query.StatusError:
		return "Failed to load article."
	case query.StatusIdle:
		return "Article not found."
	}

	a := res.Data.(*model.Article)

	return fmt.Sprintf("%s\nBy %s\n\n%s", a.Title, authorName(a), a.Content)
}

func authorName(a *model.Article) string {
	if a.Author == "" {
		return "Unknown Author"
	}

	return a.Author
}

func (v *Detail) Teardown() {}
