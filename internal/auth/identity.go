package auth

import (
	"context"

	"github.com/tenantauth/tenantauth/internal/db/models"
)

// Profile is the normalized identity delivered by a credential source.
// Whatever the wire protocol (password check, OIDC token, LDAP bind),
// validation ends in one of these.
type Profile struct {
	// Email is the provider-asserted email address. Required; a profile
	// without one is rejected before it reaches user resolution.
	Email string
	// FirstName is the given name, if the provider supplies one.
	FirstName string
	// LastName is the family name, if the provider supplies one.
	LastName string
	// ExternalID is the provider's stable identifier (OIDC sub, LDAP DN).
	// Empty for password credentials.
	ExternalID string
	// Source names the credential source that produced this profile.
	Source models.AuthSource
	// Groups are provider-side group names, used to map external group
	// membership onto tenant roles. Only LDAP and OIDC fill this.
	Groups []string
}

// Credential is one claimed identity plus the material to prove it.
// Each variant resolves itself into a normalized Profile; the rest of
// the login flow is identical across variants.
type Credential interface {
	// ResolveIdentity verifies the credential and returns the normalized
	// profile. tenantHint scopes lookups that need a tenant (password
	// checks); providers that authenticate externally ignore it.
	ResolveIdentity(ctx context.Context, tenantHint uint64) (*Profile, error)
	// Source names the credential variant.
	Source() models.AuthSource
}

// PasswordCredential is a local email/password pair.
type PasswordCredential struct {
	Email    string
	Password string

	Local *LocalProvider
}

// Source implements Credential.
func (c *PasswordCredential) Source() models.AuthSource {
	return models.AuthSourceLocal
}

// ResolveIdentity verifies the password against the tenant-scoped user
// record. Mismatches of any kind return ErrInvalidCredentials.
func (c *PasswordCredential) ResolveIdentity(ctx context.Context, tenantHint uint64) (*Profile, error) {
	user, err := c.Local.Validate(ctx, c.Email, c.Password, tenantHint)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	return &Profile{
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Source:    models.AuthSourceLocal,
	}, nil
}

// LDAPCredential is a directory username/password pair.
type LDAPCredential struct {
	Username string
	Password string

	Provider *LDAPProvider
}

// Source implements Credential.
func (c *LDAPCredential) Source() models.AuthSource {
	return models.AuthSourceLDAP
}

// ResolveIdentity binds against the directory as the user and returns
// the directory profile including group DNs.
func (c *LDAPCredential) ResolveIdentity(ctx context.Context, _ uint64) (*Profile, error) {
	return c.Provider.ResolveIdentity(ctx, c.Username, c.Password)
}

// OAuthGoogleCredential is an authorization code from Google's OIDC flow.
type OAuthGoogleCredential struct {
	Code string

	Provider *OIDCProvider
}

// Source implements Credential.
func (c *OAuthGoogleCredential) Source() models.AuthSource {
	return models.AuthSourceGoogle
}

// ResolveIdentity exchanges the code, verifies the ID token and returns
// the claims as a profile.
func (c *OAuthGoogleCredential) ResolveIdentity(ctx context.Context, _ uint64) (*Profile, error) {
	return c.Provider.ResolveIdentity(ctx, c.Code, models.AuthSourceGoogle)
}

// OAuthGitHubCredential is an authorization code from GitHub's OAuth flow.
type OAuthGitHubCredential struct {
	Code string

	Provider *GitHubProvider
}

// Source implements Credential.
func (c *OAuthGitHubCredential) Source() models.AuthSource {
	return models.AuthSourceGitHub
}

// ResolveIdentity exchanges the code and fetches the user's profile from
// the GitHub API.
func (c *OAuthGitHubCredential) ResolveIdentity(ctx context.Context, _ uint64) (*Profile, error) {
	return c.Provider.ResolveIdentity(ctx, c.Code)
}
