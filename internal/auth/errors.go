package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for every authentication mismatch:
	// unknown email, wrong password, wrong tenant, disabled account. The
	// cases are deliberately indistinguishable to prevent account
	// enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidMfaCode is returned when a supplied TOTP code does not
	// verify against the stored secret.
	ErrInvalidMfaCode = errors.New("invalid mfa code")

	// ErrTokenExpired is returned when an access token's exp claim has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalidOrRotated is returned when a refresh token is unknown,
	// malformed or was already rotated away. A rotated-away token showing
	// up again indicates replay.
	ErrTokenInvalidOrRotated = errors.New("token invalid or already rotated")

	// ErrTenantMismatch is returned when an operation references entities
	// from different tenants.
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrProfileEmailMissing is returned when an external identity
	// provider delivers a profile without an email address.
	ErrProfileEmailMissing = errors.New("identity provider returned no email")

	// ErrUserNotFound is returned when a user cannot be found in the database or directory.
	ErrUserNotFound = errors.New("user not found")

	// ErrMultipleUsersFound is returned when a query expected one user but found multiple.
	// This typically indicates a misconfigured LDAP filter or duplicate entries.
	ErrMultipleUsersFound = errors.New("multiple users found")

	// ErrUserEmailExists is returned when attempting to create a user with
	// an email that already exists within the tenant.
	ErrUserEmailExists = errors.New("user with this email already exists in tenant")

	// ErrInvalidOldPassword is returned when the provided old password does
	// not match the user's current password.
	ErrInvalidOldPassword = errors.New("invalid old password")

	// ErrNoIDToken is returned when the OAuth2 token response doesn't contain an ID token.
	ErrNoIDToken = errors.New("no id_token in token response")
)
