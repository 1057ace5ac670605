package errors

import "testing"

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrInvalidPhone,
		ErrRateLimited,
		ErrInvalidCode,
		ErrCodeExpired,
		ErrChallengeNotFound,
		ErrNoSession,
		ErrUnauthenticated,
		ErrRefreshFailed,
		ErrUnauthorized,
		ErrNetwork,
		ErrMalformedResponse,
		ErrStorage,
	}
	for _, err := range sentinels {
		if err == nil {
			t.Error("sentinel error should not be nil")
		}
	}
}
