package errors

import "errors"

// Sentinel errors for the auth, session, fetch and storage layers. Callers
// classify wrapped errors with errors.Is and map them to HTTP status or
// retry policy.
var (
	// Auth flow.
	ErrInvalidPhone      = errors.New("phone number is not a valid E.164 number")
	ErrRateLimited       = errors.New("rate limited by the portal")
	ErrInvalidCode       = errors.New("verification code rejected")
	ErrCodeExpired       = errors.New("verification code expired")
	ErrChallengeNotFound = errors.New("login challenge not found or expired")

	// Session.
	ErrNoSession       = errors.New("no stored session; onboarding required")
	ErrUnauthenticated = errors.New("session invalid; re-login required")
	ErrRefreshFailed   = errors.New("session refresh failed")

	// Fetch.
	ErrUnauthorized      = errors.New("portal rejected the session token")
	ErrNetwork           = errors.New("network error talking to the portal")
	ErrMalformedResponse = errors.New("malformed response from the portal")

	// Storage.
	ErrStorage = errors.New("credential storage failure")
)
