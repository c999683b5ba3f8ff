package mfa

import "errors"

var (
	// ErrNotConfigured is returned when a TOTP operation runs against an
	// account that has no stored secret.
	ErrNotConfigured = errors.New("mfa not configured for this account")

	// ErrAlreadyEnabled is returned when setup is requested for an account
	// with MFA already active. The existing secret is never replaced
	// without an explicit disable first.
	ErrAlreadyEnabled = errors.New("mfa already enabled")

	// ErrInvalidCode is returned when a TOTP code does not verify against
	// the stored secret within the accepted clock skew.
	ErrInvalidCode = errors.New("invalid mfa code")

	// ErrInvalidKeySize is returned when the configured encryption key is
	// not exactly 32 bytes.
	ErrInvalidKeySize = errors.New("mfa encryption key must be exactly 32 bytes")
)
