package handlers

// API error codes returned in JSON { "error": "...", "code": "..." } for stable client handling.
const (
	ErrCodeInvalidPhone     = "invalid_phone"
	ErrCodeInvalidCode      = "invalid_code"
	ErrCodeCodeExpired      = "code_expired"
	ErrCodeChallengeExpired = "challenge_expired"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeNeedsLogin       = "needs_login"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeUpstream         = "upstream_error"
	ErrCodeInternal         = "internal_error"
)
