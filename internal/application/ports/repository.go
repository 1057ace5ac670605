package ports

import (
	"context"

	"github.com/nabolaget/vibbobridge/internal/domain"
)

// CredentialStore persists the configured organization's session record.
// Absence of a record means "not authenticated, onboarding required"
// (Load returns domerrors.ErrNoSession). A write failure must be reported
// to the caller; an unsaved session is not committed.
type CredentialStore interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	Clear(ctx context.Context) error
}
