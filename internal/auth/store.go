package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredential is returned when no usable token is stored. The relay
// client fails fast on it without entering the Connecting state.
var ErrNoCredential = errors.New("no stored credential")

// Store holds the bearer credential obtained at login.
type Store interface {
	Token() (string, error)
	Save(token string) error
	Clear() error
}

// FileStore keeps the JWT in a single file, the device-local equivalent of
// the phone app's keyed storage.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Token returns the stored credential. A missing file or an expired JWT both
// count as no credential. A stored value that does not parse as a JWT is
// returned as-is and left for the backend to judge.
func (s *FileStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", ErrNoCredential
	}

	if expired(token) {
		return "", fmt.Errorf("%w: token expired", ErrNoCredential)
	}
	return token, nil
}

// Save stores the credential, replacing any previous one.
func (s *FileStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path, []byte(token), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Clear removes the stored credential.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// expired checks the exp claim without verifying the signature; verification
// is the backend's job, this only avoids dialing with a token that cannot
// work.
func expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
