package refresh

import "errors"

var (
	// ErrBackendUnavailable is returned when the Redis backend cannot be
	// reached. Token-store failures are integrity-critical and always
	// surface to the caller; they are never downgraded to a miss.
	ErrBackendUnavailable = errors.New("refresh token store unavailable")

	// ErrMalformedToken is returned when a presented token does not have
	// the "<id>.<secret>" shape. Treated the same as an unknown token by
	// callers.
	ErrMalformedToken = errors.New("malformed refresh token")
)
