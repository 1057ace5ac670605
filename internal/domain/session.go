package domain

import "time"

// OrgRef identifies one cooperative organization the user belongs to.
// Immutable once discovered.
type OrgRef struct {
	ID          string
	Slug        string
	DisplayName string
}

// Session is the durable portal session for one configured organization.
// Owned exclusively by the session manager; persisted as a single record.
type Session struct {
	// Token is the opaque portal session cookie value.
	Token string
	// ExpiresAt is zero when the portal does not expose an expiry.
	ExpiresAt     time.Time
	Organizations []OrgRef
	// ActiveOrg is the organization chosen at setup. Empty slug means
	// onboarding has not selected one yet.
	ActiveOrg OrgRef
}

// HasKnownExpiry reports whether the portal exposed an expiry for this session.
func (s Session) HasKnownExpiry() bool { return !s.ExpiresAt.IsZero() }

// ExpiresWithin reports whether the session expiry is known and falls inside
// the given margin from now. Sessions with unknown expiry never report true.
func (s Session) ExpiresWithin(now time.Time, margin time.Duration) bool {
	if !s.HasKnownExpiry() {
		return false
	}
	return !s.ExpiresAt.After(now.Add(margin))
}

// OrgBySlug returns the discovered organization with the given slug.
func (s Session) OrgBySlug(slug string) (OrgRef, bool) {
	for _, o := range s.Organizations {
		if o.Slug == slug {
			return o, true
		}
	}
	return OrgRef{}, false
}
