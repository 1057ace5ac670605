package ports

import (
	"context"
	"net/http"
	"time"

	"github.com/nabolaget/vibbobridge/internal/domain"
)

// LoginChallenge carries the per-attempt state of the portal's passwordless
// login flow: the CSRF/state/nonce scraped from the login page plus the
// cookie jar the whole handshake must share. It lives only in memory; a
// restart aborts the attempt.
type LoginChallenge struct {
	State    string
	CSRF     string
	Nonce    string
	LoginURL string
	Jar      http.CookieJar
}

// AuthGateway performs the SMS login handshake and organization discovery
// against the portal.
type AuthGateway interface {
	// StartLogin loads the login page and extracts the challenge state.
	StartLogin(ctx context.Context) (*LoginChallenge, error)
	// RequestCode asks the portal to send an SMS code to the phone number.
	// The number must already be validated; the gateway does not re-check it.
	RequestCode(ctx context.Context, ch *LoginChallenge, phoneNumber string) error
	// VerifyCode exchanges the code for a durable session token.
	VerifyCode(ctx context.Context, ch *LoginChallenge, phoneNumber, code string) (*domain.Session, error)
	// DiscoverOrganizations lists the memberships visible to the session.
	DiscoverOrganizations(ctx context.Context, token string) ([]domain.OrgRef, error)
	// ResolveOrganizationID returns the portal's opaque id for a slug.
	ResolveOrganizationID(ctx context.Context, token, slug string) (string, error)
	// RefreshSession revalidates a session against the portal and returns the
	// renewed session (rolling cookie and, when known, new expiry).
	RefreshSession(ctx context.Context, session domain.Session) (*domain.Session, error)
}

// RawEntry is one activity entry as returned by the portal, before
// normalization. TypeTag discriminates the entry kind; unrecognized tags are
// dropped by the normalizer.
type RawEntry struct {
	TypeTag    string
	HappenedAt time.Time
	ID         string
	Slug       string
	Title      string
	Body       string
	Pinned     bool
	Topics     []string
	Category   string
	AuthorName string
	Comments   int
	ThumbsUp   int
}

// RawFeed is the unprocessed payload of one organization-scoped feed query.
type RawFeed struct {
	Entries []RawEntry
}

// FeedGateway issues the organization-scoped activity query.
type FeedGateway interface {
	FetchActivity(ctx context.Context, token, orgID string, limit int) (*RawFeed, error)
}
