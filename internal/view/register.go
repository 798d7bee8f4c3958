package view

import (
	"context"
	"sync"

	"github.com/fanpulse/pulse/client"
)

// Register is the view at "/register".
type Register struct {
	deps Deps
	nav  Navigator

	mu              sync.Mutex
	Name            string
	Phone           string
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
	Image           string
	notice          string
}

func NewRegister(deps Deps, nav Navigator) *Register {
	return &Register{deps: deps, nav: nav}
}

// Submit validates the form client-side, registers, and on success logs the
// new account in and navigates to the dashboard.
func (v *Register) Submit(ctx context.Context) error {
	v.mu.Lock()
	form := client.RegisterRequest{
		Name:     v.Name,
		Phone:    v.Phone,
		Email:    v.Email,
		Username: v.Username,
		Password: v.Password,
		Image:    v.Image,
	}
	confirm := v.ConfirmPassword
	v.mu.Unlock()

	if form.Password != confirm {
		v.setNotice("Passwords do not match.")

		return ErrValidation
	}
	if form.Name == "" || form.Phone == "" || form.Email == "" || form.Username == "" || form.Password == "" {
		v.setNotice("Please fill out all required fields.")

		return ErrValidation
	}

	_, err := v.deps.Cache.Mutate(ctx, func(ctx context.Context) (interface{}, error) {
		return v.deps.API.Register(ctx, form)
	})
	if err != nil {
		v.setNotice("Registration failed.")

		return err
	}

	// The register endpoint confirms the account but issues no token, so
	// log in with the same credentials before moving on.
	res, err := v.deps.API.Login(ctx, form.Email, form.Password)
	if err != nil {
		v.setNotice("Registration succeeded, but login failed.")

		return err
	}
	if err := v.deps.Session.Set(res.Token, res.UserID); err != nil {
		return err
	}
	v.setNotice("Registration successful!")

	return v.nav.Navigate(PathDashboard)
}

func (v *Register) setNotice(s string) {
	v.mu.Lock()
	v.notice = s
	v.mu.Unlock()
}

func (v *Register) Render() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := "Register: name, phone, email, username, password."
	if v.notice != "" {
		out += "\n" + v.notice
	}

	return out
}

func (v *Register) Teardown() {}
