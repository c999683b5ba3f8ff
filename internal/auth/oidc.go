package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/tenantauth/tenantauth/internal/config"
	"github.com/tenantauth/tenantauth/internal/db/models"
	"github.com/tenantauth/tenantauth/internal/uniuri"
)

// OIDCProvider handles OpenID Connect authentication (Google and other
// discovery-capable providers). It only produces a normalized Profile;
// user resolution happens in LocalProvider.ResolveExternal.
type OIDCProvider struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth2   oauth2.Config
}

// NewOIDCProvider creates a new OIDC provider from discovery.
func NewOIDCProvider(ctx context.Context, cfg config.OAuthProvider) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
	})

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	oauth2Config := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}

	return &OIDCProvider{
		provider: provider,
		verifier: verifier,
		oauth2:   oauth2Config,
	}, nil
}

// GenerateStateToken generates a random state token for CSRF protection.
func GenerateStateToken() string {
	return uniuri.NewLen(uniuri.TokenLen)
}

// AuthURL returns the provider authorization URL with the state token.
func (p *OIDCProvider) AuthURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

// ResolveIdentity exchanges the authorization code, verifies the ID
// token and returns the normalized profile.
func (p *OIDCProvider) ResolveIdentity(ctx context.Context, code string, source models.AuthSource) (*Profile, error) {
	oauth2Token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, ErrNoIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Sub        string   `json:"sub"`
		Email      string   `json:"email"`
		GivenName  string   `json:"given_name"`
		FamilyName string   `json:"family_name"`
		Groups     []string `json:"groups"`
	}

	if err = idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	if claims.Email == "" {
		return nil, ErrProfileEmailMissing
	}

	return &Profile{
		Email:      claims.Email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
		ExternalID: claims.Sub,
		Source:     source,
		Groups:     claims.Groups,
	}, nil
}
