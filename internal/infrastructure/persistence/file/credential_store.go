// Package file persists the session record as a JSON state file, the
// deployment mode for a single-host bridge without a database.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

type CredentialStore struct {
	path string
}

func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

type orgRecord struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type sessionRecord struct {
	Token            string      `json:"token"`
	ExpiresAt        *time.Time  `json:"expires_at,omitempty"`
	OrganizationID   string      `json:"organization_id"`
	OrganizationSlug string      `json:"organization_slug"`
	OrganizationName string      `json:"organization_name"`
	Organizations    []orgRecord `json:"organizations"`
}

func (s *CredentialStore) Load(_ context.Context) (*domain.Session, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, domerrors.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	session := &domain.Session{
		Token: rec.Token,
		ActiveOrg: domain.OrgRef{
			ID:          rec.OrganizationID,
			Slug:        rec.OrganizationSlug,
			DisplayName: rec.OrganizationName,
		},
	}
	if rec.ExpiresAt != nil {
		session.ExpiresAt = *rec.ExpiresAt
	}
	for _, o := range rec.Organizations {
		session.Organizations = append(session.Organizations, domain.OrgRef{ID: o.ID, Slug: o.Slug, DisplayName: o.Name})
	}
	return session, nil
}

// Save writes the record to a temp file and renames it into place so a
// crash mid-write never leaves a truncated session on disk.
func (s *CredentialStore) Save(_ context.Context, session domain.Session) error {
	rec := sessionRecord{
		Token:            session.Token,
		OrganizationID:   session.ActiveOrg.ID,
		OrganizationSlug: session.ActiveOrg.Slug,
		OrganizationName: session.ActiveOrg.DisplayName,
		Organizations:    make([]orgRecord, 0, len(session.Organizations)),
	}
	if session.HasKnownExpiry() {
		t := session.ExpiresAt
		rec.ExpiresAt = &t
	}
	for _, o := range session.Organizations {
		rec.Organizations = append(rec.Organizations, orgRecord{ID: o.ID, Slug: o.Slug, Name: o.DisplayName})
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit state file: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
