package view

import (
	"context"
	"sync"

	"github.com/fanpulse/pulse/client"
)

// Login is the view at "/". On success it writes the session store and
// navigates to the dashboard.
type Login struct {
	deps Deps
	nav  Navigator

	mu       sync.Mutex
	Email    string
	Password string
	notice   string
	pending  bool
}

func NewLogin(deps Deps, nav Navigator) *Login {
	return &Login{deps: deps, nav: nav}
}

// Submit logs in with the current form state. A validation failure sets the
// inline notice and never reaches the network.
func (v *Login) Submit(ctx context.Context) error {
	v.mu.Lock()
	email, password := v.Email, v.Password
	v.mu.Unlock()

	if email == "" || password == "" {
		v.setNotice("Email and password are required.")

		return ErrValidation
	}

	v.setPending(true)
	defer v.setPending(false)

	res, err := v.deps.Cache.Mutate(ctx, func(ctx context.Context) (interface{}, error) {
		return v.deps.API.Login(ctx, email, password)
	})
	if err != nil {
		v.setNotice("Login failed. Please check your credentials.")

		return err
	}

	lr := res.(*client.LoginResult)
	if err := v.deps.Session.Set(lr.Token, lr.UserID); err != nil {
		return err
	}

	return v.nav.Navigate(PathDashboard)
}

func (v *Login) setNotice(s string) {
	v.mu.Lock()
	v.notice = s
	v.mu.Unlock()
}

func (v *Login) setPending(p bool) {
	v.mu.Lock()
	v.pending = p
	v.mu.Unlock()
}

func (v *Login) Render() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pending {
		return "Logging in..."
	}
	out := "Login: enter email and password."
	if v.notice != "" {
		out += "\n" + v.notice
	}

	return out
}

func (v *Login) Teardown() {}
