package ports

import "context"

// RequestThrottle bounds SMS code requests per phone number so the bridge
// cannot be used to spam the portal's SMS gateway.
type RequestThrottle interface {
	// IsThrottled returns true if the number is in cooldown, and the
	// remaining cooldown in seconds.
	IsThrottled(ctx context.Context, phoneNumber string) (throttled bool, retryAfterSeconds int)
	// Record counts one code request; may start a cooldown after N requests.
	Record(ctx context.Context, phoneNumber string)
	// Clear resets the counter (call after a completed login).
	Clear(ctx context.Context, phoneNumber string)
}
