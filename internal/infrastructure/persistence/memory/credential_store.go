// Package memory holds the session record in process memory only. Used in
// tests and as the fallback when neither a database nor a state file is
// configured.
package memory

import (
	"context"
	"sync"

	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

type CredentialStore struct {
	mu      sync.Mutex
	session *domain.Session
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

func (s *CredentialStore) Load(_ context.Context) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, domerrors.ErrNoSession
	}
	copied := *s.session
	return &copied, nil
}

func (s *CredentialStore) Save(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &session
	return nil
}

func (s *CredentialStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
