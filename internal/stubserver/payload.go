package stubserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/fanpulse/pulse/internal/model"
)

//--
// Request and response payloads for the stub API. Article responses use the
// {"data": ...} envelope; users and messages ride under their own field.
//--

type dataResponse struct {
	Data interface{} `json:"data"`
}

func (d *dataResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type usersResponse struct {
	Users []*model.User `json:"users"`
}

func (u *usersResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type messagesResponse struct {
	Messages []*model.Message `json:"messages"`
}

func (m *messagesResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func (l *loginResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

type registerRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Image    string `json:"image"`
}

func (rr *registerRequest) Bind(r *http.Request) error {
	if rr.Name == "" || rr.Email == "" || rr.Username == "" || rr.Password == "" {
		return errors.New("missing required registration fields")
	}

	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (lr *loginRequest) Bind(r *http.Request) error {
	if lr.Email == "" || lr.Password == "" {
		return errors.New("email and password are required")
	}

	return nil
}

// articleRequest is the request payload for the article data model.
type articleRequest struct {
	*model.Article

	ProtectedID string `json:"id"` // override 'id' so clients cannot pick their own
}

func (a *articleRequest) Bind(r *http.Request) error {
	// a.Article is nil if no Article fields are sent in the request. Return an
	// error to avoid a nil pointer dereference.
	if a.Article == nil {
		return errors.New("missing required article fields")
	}
	if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Content) == "" {
		return errors.New("title and content are required")
	}
	a.ProtectedID = ""

	return nil
}

type messageRequest struct {
	*model.Message
}

func (m *messageRequest) Bind(r *http.Request) error {
	if m.Message == nil {
		return errors.New("missing required message fields")
	}
	if m.ReceiverID == "" || strings.TrimSpace(m.Text) == "" {
		return errors.New("receiverId and text are required")
	}

	return nil
}

//--
// Error response payloads & renderers
//--

// ErrResponse renderer type for handling all sorts of errors.
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText string `json:"status"`          // user-level status message
	ErrorText  string `json:"error,omitempty"` // application-level error message, for debugging
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)

	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrUnauthorized(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusUnauthorized,
		StatusText:     "Unauthorized.",
		ErrorText:      err.Error(),
	}
}

func ErrRender(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusUnprocessableEntity,
		StatusText:     "Error rendering response.",
		ErrorText:      err.Error(),
	}
}

var ErrNotFound = &ErrResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "Resource not found."}
