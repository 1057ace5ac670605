package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

// CredentialStore persists the session record in Postgres. The bridge
// configures one organization, so the table holds a single row.
type CredentialStore struct {
	pool *pgxpool.Pool
}

func NewCredentialStore(pool *pgxpool.Pool) *CredentialStore {
	return &CredentialStore{pool: pool}
}

// EnsureSchema creates the session table if missing.
func (s *CredentialStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS vibbo_session (
			id smallint PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			token text NOT NULL,
			expires_at timestamptz,
			org_id text NOT NULL DEFAULT '',
			org_slug text NOT NULL DEFAULT '',
			org_name text NOT NULL DEFAULT '',
			organizations jsonb NOT NULL DEFAULT '[]',
			updated_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure session schema: %w", err)
	}
	return nil
}

type orgRecord struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (s *CredentialStore) Load(ctx context.Context) (*domain.Session, error) {
	var (
		token     string
		expiresAt *time.Time
		orgID     string
		orgSlug   string
		orgName   string
		orgsJSON  []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT token, expires_at, org_id, org_slug, org_name, organizations
		FROM vibbo_session WHERE id = 1`).
		Scan(&token, &expiresAt, &orgID, &orgSlug, &orgName, &orgsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domerrors.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	session := &domain.Session{
		Token:     token,
		ActiveOrg: domain.OrgRef{ID: orgID, Slug: orgSlug, DisplayName: orgName},
	}
	if expiresAt != nil {
		session.ExpiresAt = *expiresAt
	}
	var orgs []orgRecord
	if err := json.Unmarshal(orgsJSON, &orgs); err != nil {
		return nil, fmt.Errorf("decode organizations: %w", err)
	}
	for _, o := range orgs {
		session.Organizations = append(session.Organizations, domain.OrgRef{ID: o.ID, Slug: o.Slug, DisplayName: o.Name})
	}
	return session, nil
}

func (s *CredentialStore) Save(ctx context.Context, session domain.Session) error {
	orgs := make([]orgRecord, 0, len(session.Organizations))
	for _, o := range session.Organizations {
		orgs = append(orgs, orgRecord{ID: o.ID, Slug: o.Slug, Name: o.DisplayName})
	}
	orgsJSON, err := json.Marshal(orgs)
	if err != nil {
		return fmt.Errorf("encode organizations: %w", err)
	}

	var expiresAt *time.Time
	if session.HasKnownExpiry() {
		t := session.ExpiresAt
		expiresAt = &t
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO vibbo_session (id, token, expires_at, org_id, org_slug, org_name, organizations, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			token = EXCLUDED.token,
			expires_at = EXCLUDED.expires_at,
			org_id = EXCLUDED.org_id,
			org_slug = EXCLUDED.org_slug,
			org_name = EXCLUDED.org_name,
			organizations = EXCLUDED.organizations,
			updated_at = now()`,
		session.Token, expiresAt,
		session.ActiveOrg.ID, session.ActiveOrg.Slug, session.ActiveOrg.DisplayName,
		orgsJSON)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM vibbo_session WHERE id = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
