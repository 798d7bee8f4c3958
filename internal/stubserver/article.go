package stubserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/fanpulse/pulse/internal/model"
)

// articleCtx loads an Article from the URL parameter onto the request
// context, stopping with a 404 when it does not exist.
func (s *Server) articleCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		articleID := chi.URLParam(r, "articleID")
		if articleID == "" {
			s.renderErr(w, r, ErrNotFound)

			return
		}

		article := s.findArticle(articleID)
		if article == nil {
			s.renderErr(w, r, ErrNotFound)

			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyArticle, article)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) findArticle(id string) *model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.articles {
		if a.ID == id {
			return a
		}
	}

	return nil
}

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	articles := make([]*model.Article, len(s.articles))
	copy(articles, s.articles)
	s.mu.Unlock()

	s.renderErr(w, r, &dataResponse{Data: articles})
}

func (s *Server) listUserArticles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	s.mu.Lock()
	articles := []*model.Article{}
	for _, a := range s.articles {
		if a.Author == userID {
			articles = append(articles, a)
		}
	}
	s.mu.Unlock()

	s.renderErr(w, r, &dataResponse{Data: articles})
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	article := r.Context().Value(ctxKeyArticle).(*model.Article)

	s.renderErr(w, r, &dataResponse{Data: article})
}

// createArticle persists the posted article and returns it back to the
// client as an acknowledgement, with a server-assigned id.
func (s *Server) createArticle(w http.ResponseWriter, r *http.Request) {
	data := &articleRequest{}
	if err := render.Bind(r, data); err != nil {
		s.renderErr(w, r, ErrInvalidRequest(err))

		return
	}

	article := data.Article
	if article.Author == "" {
		article.Author, _ = r.Context().Value(ctxKeyUserID).(string)
	}

	s.mu.Lock()
	article.ID = s.nextID()
	s.articles = append(s.articles, article)
	s.mu.Unlock()

	render.Status(r, http.StatusCreated)
	s.renderErr(w, r, &dataResponse{Data: article})
}

func (s *Server) updateArticle(w http.ResponseWriter, r *http.Request) {
	article := r.Context().Value(ctxKeyArticle).(*model.Article)

	data := &articleRequest{Article: &model.Article{ID: article.ID, Author: article.Author}}
	if err := render.Bind(r, data); err != nil {
		s.renderErr(w, r, ErrInvalidRequest(err))

		return
	}

	s.mu.Lock()
	article.Title = data.Title
	article.Content = data.Content
	article.Image = data.Image
	s.mu.Unlock()

	s.renderErr(w, r, &dataResponse{Data: article})
}

func (s *Server) deleteArticle(w http.ResponseWriter, r *http.Request) {
	article := r.Context().Value(ctxKeyArticle).(*model.Article)

	s.mu.Lock()
	for i, a := range s.articles {
		if a.ID == article.ID {
			s.articles = append(s.articles[:i], s.articles[i+1:]...)

			break
		}
	}
	s.mu.Unlock()

	s.renderErr(w, r, &dataResponse{Data: article})
}
