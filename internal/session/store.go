// Package session persists the logged-in identity (token + user id) across
// process restarts. The store is process-wide: written by the login success
// handler, read by every authenticated view, including views mounted after
// the write.
package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type data struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// Store is a durable key-value session record backed by a JSON file.
type Store struct {
	mu   sync.RWMutex
	path string
	log  *zap.SugaredLogger
	data data
}

// Open loads the session file at path if it exists. A missing file is a
// logged-out session, not an error.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Store{path: path, log: log}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		log.Warnw("discarding unreadable session file", "path", path, "err", err)
		s.data = data{}
	}

	return s, nil
}

// Set records a new identity and writes it through to disk.
func (s *Store) Set(token, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = data{Token: token, UserID: userID}

	return s.flushLocked()
}

// Clear forgets the identity and removes the session file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = data{}
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data.Token
}

// UserID returns the stored user id. When the server omitted the id but the
// token is a JWT, the subject claim is used instead; the claim is read
// without signature verification since the client never holds the secret.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data.UserID != "" {
		return s.data.UserID
	}
	if s.data.Token == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.data.Token, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}

	return sub
}

// LoggedIn reports whether an identity is held. It resolves the user id the
// same way UserID does, so a session holding only a token with a subject
// claim still counts as logged in.
func (s *Store) LoggedIn() bool {
	return s.Token() != "" && s.UserID() != ""
}

func (s *Store) flushLocked() error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	return os.WriteFile(s.path, raw, 0o600)
}
