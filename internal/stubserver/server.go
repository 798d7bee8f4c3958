// Package stubserver is an in-memory implementation of the Pulse API
// surface. It backs the -stub development mode and the client/view test
// suites, so the rest of the code can be exercised against real HTTP.
package stubserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fanpulse/pulse/internal/model"
)

type ctxKey int8

const (
	ctxKeyArticle ctxKey = iota
	ctxKeyUserID
)

type credential struct {
	userID string
	hash   []byte
}

// Server holds the in-memory fixture state behind the API.
type Server struct {
	log    *zap.SugaredLogger
	secret []byte

	mu       sync.Mutex
	users    []*model.User
	creds    map[string]credential // keyed by email
	articles []*model.Article
	messages []*model.Message
	seq      int
}

func New(log *zap.SugaredLogger, secret []byte) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Server{log: log, secret: secret, creds: map[string]credential{}}
}

// Routes returns the router for the API, to be mounted at /api/v1.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.URLFormat)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Get("/users", s.listUsers)
	})

	r.Route("/article", func(r chi.Router) {
		r.Get("/", s.listArticles)
		r.Get("/user/{userID}", s.listUserArticles)
		r.With(s.auth).Post("/add", s.createArticle)

		r.Route("/{articleID}", func(r chi.Router) {
			r.Use(s.articleCtx) // load the *Article onto the request context
			r.Get("/", s.getArticle)
			r.With(s.auth).Put("/", s.updateArticle)
			r.With(s.auth).Delete("/", s.deleteArticle)
		})
	})

	r.Route("/message", func(r chi.Router) {
		r.Use(s.auth)
		r.Post("/send", s.sendMessage)
		r.Get("/conversation/{conversationID}", s.conversationMessages)
		r.Get("/{peerID}", s.peerMessages)
	})

	return r
}

func (s *Server) nextID() string {
	s.seq++

	return fmt.Sprintf("%d", s.seq)
}

// auth requires a signed bearer token and puts the subject user id on the
// request context.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if tokenString == "" {
			s.renderErr(w, r, ErrUnauthorized(errors.New("no token provided")))

			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}

			return s.secret, nil
		})
		if err != nil || !token.Valid {
			s.renderErr(w, r, ErrUnauthorized(errors.New("invalid or expired token")))

			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			s.renderErr(w, r, ErrUnauthorized(errors.New("could not parse token claims")))

			return
		}
		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			s.renderErr(w, r, ErrUnauthorized(errors.New("subject claim missing")))

			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	data := &registerRequest{}
	if err := render.Bind(r, data); err != nil {
		s.renderErr(w, r, ErrInvalidRequest(err))

		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(data.Password), bcrypt.DefaultCost)
	if err != nil {
		s.renderErr(w, r, ErrRender(err))

		return
	}

	s.mu.Lock()
	if _, exists := s.creds[data.Email]; exists {
		s.mu.Unlock()
		s.renderErr(w, r, ErrInvalidRequest(errors.New("email already registered")))

		return
	}
	user := &model.User{
		ID:       s.nextID(),
		Name:     data.Name,
		Phone:    data.Phone,
		Email:    data.Email,
		Username: data.Username,
		Image:    data.Image,
	}
	s.users = append(s.users, user)
	s.creds[data.Email] = credential{userID: user.ID, hash: hash}
	s.mu.Unlock()

	render.Status(r, http.StatusCreated)
	s.renderErr(w, r, &dataResponse{Data: user})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	data := &loginRequest{}
	if err := render.Bind(r, data); err != nil {
		s.renderErr(w, r, ErrInvalidRequest(err))

		return
	}

	s.mu.Lock()
	cred, ok := s.creds[data.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(cred.hash, []byte(data.Password)) != nil {
		s.renderErr(w, r, ErrUnauthorized(errors.New("invalid credentials")))

		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": cred.userID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		s.renderErr(w, r, ErrRender(err))

		return
	}

	s.renderErr(w, r, &loginResponse{Token: signed, UserID: cred.userID})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := make([]*model.User, len(s.users))
	copy(users, s.users)
	s.mu.Unlock()

	s.renderErr(w, r, &usersResponse{Users: users})
}

func (s *Server) renderErr(w http.ResponseWriter, r *http.Request, v render.Renderer) {
	if err := render.Render(w, r, v); err != nil {
		s.log.Errorw("render failed", "err", err)
	}
}
