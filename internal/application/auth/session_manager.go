package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
	"github.com/nabolaget/vibbobridge/internal/domain"
	domerrors "github.com/nabolaget/vibbobridge/internal/domain/errors"
)

// DefaultRefreshMargin is how close to expiry a session may get before it is
// refreshed ahead of use.
const DefaultRefreshMargin = 60 * time.Second

// AuthContext authorizes one portal request.
type AuthContext struct {
	Token   string
	OrgID   string
	OrgSlug string
}

// Manager guarantees callers a valid, non-expired session, refreshing
// through the gateway when the stored session is expired or inside the
// safety margin. It is the single writer of the credential store.
type Manager struct {
	mu      sync.Mutex
	store   ports.CredentialStore
	gateway ports.AuthGateway
	margin  time.Duration
	now     func() time.Time
	current *domain.Session
	log     zerolog.Logger
}

func NewManager(store ports.CredentialStore, gateway ports.AuthGateway, margin time.Duration, log zerolog.Logger) *Manager {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	return &Manager{
		store:   store,
		gateway: gateway,
		margin:  margin,
		now:     time.Now,
		log:     log,
	}
}

// AuthorizedContext returns a context authorized by the active session.
// A session with a known expiry inside the margin is refreshed first; a
// session whose expiry is unknown or comfortably in the future is returned
// unchanged.
func (m *Manager) AuthorizedContext(ctx context.Context) (AuthContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.loadLocked(ctx)
	if err != nil {
		return AuthContext{}, err
	}
	if session.ExpiresWithin(m.now(), m.margin) {
		session, err = m.refreshLocked(ctx, *session)
		if err != nil {
			return AuthContext{}, err
		}
	}
	return authContextFor(session), nil
}

// Reauthorize forces a refresh regardless of the stored expiry. The feed
// fetcher calls it after the portal rejects a token that looked valid.
func (m *Manager) Reauthorize(ctx context.Context) (AuthContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.loadLocked(ctx)
	if err != nil {
		return AuthContext{}, err
	}
	session, err = m.refreshLocked(ctx, *session)
	if err != nil {
		return AuthContext{}, err
	}
	return authContextFor(session), nil
}

// Commit persists a session produced by the login flow and makes it current.
// A failed save is surfaced and the session is not treated as committed.
func (m *Manager) Commit(ctx context.Context, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Save(ctx, session); err != nil {
		return fmt.Errorf("%w: %w", domerrors.ErrStorage, err)
	}
	m.current = &session
	return nil
}

// Current returns a copy of the stored session for read-only surfaces
// (organization listing, diagnostics).
func (m *Manager) Current(ctx context.Context) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, err := m.loadLocked(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	return *session, nil
}

// SetActiveOrg records the organization chosen at setup.
func (m *Manager) SetActiveOrg(ctx context.Context, org domain.OrgRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, err := m.loadLocked(ctx)
	if err != nil {
		return err
	}
	updated := *session
	updated.ActiveOrg = org
	if err := m.store.Save(ctx, updated); err != nil {
		return fmt.Errorf("%w: %w", domerrors.ErrStorage, err)
	}
	m.current = &updated
	return nil
}

// Clear discards the stored session. The next AuthorizedContext reports
// ErrUnauthenticated until a new login completes.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("%w: %w", domerrors.ErrStorage, err)
	}
	m.current = nil
	return nil
}

func (m *Manager) loadLocked(ctx context.Context) (*domain.Session, error) {
	if m.current != nil {
		return m.current, nil
	}
	session, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, domerrors.ErrNoSession) {
			return nil, domerrors.ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: %w", domerrors.ErrStorage, err)
	}
	m.current = session
	return session, nil
}

// refreshLocked renews the session through the gateway and persists the
// result. The previous session stays current if the save fails: a token
// believed saved but not persisted is a correctness hazard.
func (m *Manager) refreshLocked(ctx context.Context, old domain.Session) (*domain.Session, error) {
	refreshed, err := m.gateway.RefreshSession(ctx, old)
	if err != nil {
		if errors.Is(err, domerrors.ErrUnauthorized) {
			return nil, fmt.Errorf("%w: %w", domerrors.ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("%w: %w", domerrors.ErrRefreshFailed, err)
	}
	// The gateway only renews the token and expiry; membership and the
	// active org selection carry over.
	if len(refreshed.Organizations) == 0 {
		refreshed.Organizations = old.Organizations
	}
	if refreshed.ActiveOrg.Slug == "" {
		refreshed.ActiveOrg = old.ActiveOrg
	}
	if err := m.store.Save(ctx, *refreshed); err != nil {
		return nil, fmt.Errorf("%w: %w", domerrors.ErrStorage, err)
	}
	m.current = refreshed
	m.log.Debug().Time("expires_at", refreshed.ExpiresAt).Msg("session refreshed")
	return refreshed, nil
}

func authContextFor(session *domain.Session) AuthContext {
	return AuthContext{
		Token:   session.Token,
		OrgID:   session.ActiveOrg.ID,
		OrgSlug: session.ActiveOrg.Slug,
	}
}
