package view

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fanpulse/pulse/client"
	"github.com/fanpulse/pulse/internal/model"
	"github.com/fanpulse/pulse/internal/query"
)

// Editor is the view at "/article": the article form plus the author's own
// listing. One submit path serves both create and update, branching on the
// held edit id.
type Editor struct {
	deps  Deps
	unsub func()

	mu      sync.Mutex
	Title   string
	Content string
	image   string // inline data URL, attached to the request body as-is
	editID  string
	notice  string
}

func NewEditor(deps Deps) *Editor {
	v := &Editor{deps: deps}
	if uid := deps.Session.UserID(); uid != "" {
		v.unsub = deps.Cache.AutoRefetch(KeyUserArticles(uid), v.fetchOwn(uid))
	}

	return v
}

func (v *Editor) fetchOwn(uid string) query.Fetcher {
	return func(ctx context.Context) (interface{}, error) {
		return v.deps.API.UserArticles(ctx, uid)
	}
}

// Articles lists the author's own articles. Until a user id is known the
// query never fires and resolves to an empty result.
func (v *Editor) Articles(ctx context.Context) ([]model.Article, error) {
	uid := v.deps.Session.UserID()
	data, err := v.deps.Cache.FetchGated(ctx, KeyUserArticles(uid), uid, v.fetchOwn(uid))
	if err != nil {
		return nil, err
	}

	return articlesOf(data), nil
}

// AttachImage inlines the file as a base64 data URL so the request body is
// self-contained and the server needs no upload endpoint. The practical
// size limit is whatever body size the server accepts.
func (v *Editor) AttachImage(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	mime := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mime = "image/png"
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".gif":
		mime = "image/gif"
	case ".webp":
		mime = "image/webp"
	}

	v.mu.Lock()
	v.image = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
	v.mu.Unlock()

	return nil
}

func (v *Editor) RemoveImage() {
	v.mu.Lock()
	v.image = ""
	v.mu.Unlock()
}

// BeginEdit preloads an owned article into the form and holds its id, so
// the next Submit updates instead of creating.
func (v *Editor) BeginEdit(ctx context.Context, id string) error {
	articles, err := v.Articles(ctx)
	if err != nil {
		return err
	}
	for _, a := range articles {
		if a.ID == id {
			v.mu.Lock()
			v.Title = a.Title
			v.Content = a.Content
			v.image = a.Image
			v.editID = a.ID
			v.mu.Unlock()

			return nil
		}
	}

	return fmt.Errorf("article %q is not yours to edit", id)
}

// Submit creates or updates depending on whether an edit id is held. Both
// paths converge: clear the form, clear the edit id, invalidate the public
// and per-owner listings.
func (v *Editor) Submit(ctx context.Context) (*model.Article, error) {
	uid := v.deps.Session.UserID()
	if uid == "" {
		v.setNotice("You must be logged in to publish.")

		return nil, ErrValidation
	}

	v.mu.Lock()
	in := client.ArticleInput{Title: v.Title, Content: v.Content, Image: v.image}
	editID := v.editID
	v.mu.Unlock()

	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		v.setNotice("Title and content are required.")

		return nil, ErrValidation
	}

	invalidates := []query.Key{KeyArticles(), KeyUserArticles(uid)}

	var res interface{}
	var err error
	if editID != "" {
		res, err = v.deps.Cache.Mutate(ctx, func(ctx context.Context) (interface{}, error) {
			return v.deps.API.UpdateArticle(ctx, editID, in)
		}, invalidates...)
	} else {
		in.Author = uid
		res, err = v.deps.Cache.Mutate(ctx, func(ctx context.Context) (interface{}, error) {
			return v.deps.API.CreateArticle(ctx, in)
		}, invalidates...)
	}
	if err != nil {
		v.setNotice("Failed to save article.")

		return nil, err
	}

	v.resetForm()
	v.setNotice("Article saved.")

	return res.(*model.Article), nil
}

// Delete removes an article and invalidates both listings.
func (v *Editor) Delete(ctx context.Context, id string) error {
	uid := v.deps.Session.UserID()
	if uid == "" {
		return ErrValidation
	}

	_, err := v.deps.Cache.Mutate(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, v.deps.API.DeleteArticle(ctx, id)
	}, KeyArticles(), KeyUserArticles(uid))

	return err
}

func (v *Editor) resetForm() {
	v.mu.Lock()
	v.Title = ""
	v.Content = ""
	v.image = ""
	v.editID = ""
	v.mu.Unlock()
}

// EditingID returns the id of the article being edited, empty when the
// form would create.
func (v *Editor) EditingID() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.editID
}

func (v *Editor) setNotice(s string) {
	v.mu.Lock()
	v.notice = s
	v.mu.Unlock()
}

func (v *Editor) Render() string {
	v.mu.Lock()
	title := "Write an Article"
	if v.editID != "" {
		title = "Edit Article"
	}
	notice := v.notice
	hasImage := v.image != ""
	v.mu.Unlock()

	var b strings.Builder
	b.WriteString(title)
	if hasImage {
		b.WriteString(" (image attached)")
	}
	if notice != "" {
		b.WriteString("\n" + notice)
	}

	uid := v.deps.Session.UserID()
	res := v.deps.Cache.Peek(KeyUserArticles(uid))
	b.WriteString("\n\nYour Articles\n")
	switch {
	case uid == "":
		b.WriteString("Not logged in.")
	case res.Status == query.StatusPending:
		b.WriteString("Loading...")
	case res.Status == query.StatusError:
		b.WriteString("Failed to load your articles.")
	default:
		articles := articlesOf(res.Data)
		if len(articles) == 0 {
			b.WriteString("Nothing here yet.")
		}
		for _, a := range articles {
			fmt.Fprintf(&b, "[%s] %s\n", a.ID, a.Title)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func (v *Editor) Teardown() {
	if v.unsub != nil {
		v.unsub()
	}
}
