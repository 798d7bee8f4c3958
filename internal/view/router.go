package view

import (
	"fmt"
	"strings"
	"sync"
)

// Paths of the navigation surface.
const (
	PathLogin     = "/"
	PathRegister  = "/register"
	PathDashboard = "/dashboard"
	PathEditor    = "/article"
	PathMessages  = "/messages"
)

// Router maps URL paths to views. Navigation tears the previous view down
// before mounting the next one, so no poller or subscription outlives its
// view.
type Router struct {
	deps Deps

	mu      sync.Mutex
	path    string
	current View
}

func NewRouter(deps Deps) *Router {
	return &Router{deps: deps}
}

// Navigate mounts the view for path.
func (r *Router) Navigate(path string) error {
	next, err := r.mount(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	prev := r.current
	r.current = next
	r.path = path
	r.mu.Unlock()

	if prev != nil {
		prev.Teardown()
	}
	r.deps.Log.Debugw("navigated", "path", path)

	return nil
}

// Current returns the mounted path and view.
func (r *Router) Current() (string, View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.path, r.current
}

func (r *Router) mount(path string) (View, error) {
	switch {
	case path == PathLogin:
		return NewLogin(r.deps, r), nil
	case path == PathRegister:
		return NewRegister(r.deps, r), nil
	case path == PathDashboard:
		return NewFeed(r.deps), nil
	case path == PathEditor:
		return NewEditor(r.deps), nil
	case strings.HasPrefix(path, PathEditor+"/"):
		return NewDetail(r.deps, strings.TrimPrefix(path, PathEditor+"/")), nil
	case path == PathMessages:
		return NewChat(r.deps), nil
	}

	return nil, fmt.Errorf("no view mounted at %q", path)
}
