package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/tenantauth/tenantauth/internal/db/models"
	"github.com/tenantauth/tenantauth/internal/metrics"
	"github.com/tenantauth/tenantauth/internal/mfa"
	"github.com/tenantauth/tenantauth/internal/refresh"
	"github.com/tenantauth/tenantauth/internal/tenantctx"
)

// MfaVerifier checks a login-time TOTP code for a user with MFA active.
type MfaVerifier interface {
	VerifyLogin(ctx context.Context, user *models.User, code string) error
}

// GroupMapper maps provider-side group names onto tenant roles after an
// external login.
type GroupMapper interface {
	SyncGroups(ctx context.Context, user *models.User, groups []string) error
}

// LoginResult is the outcome of a successful Login or Refresh.
// When RequiresMfa is set the tokens are empty and the caller must retry
// with a TOTP code.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	RequiresMfa  bool
	User         *models.User
}

// Service orchestrates the full authentication lifecycle: credential
// validation, the MFA gate, token issuance and refresh rotation. The
// tenant always comes from the request context, never from service
// state.
type Service struct {
	local   *LocalProvider
	issuer  *TokenIssuer
	refresh refresh.Store
	mfa     MfaVerifier
	groups  GroupMapper
}

// NewService wires up the authentication service. mfa and groups may be
// nil, which disables the MFA gate and group-to-role mapping.
func NewService(
	local *LocalProvider,
	issuer *TokenIssuer,
	store refresh.Store,
	mfa MfaVerifier,
	groups GroupMapper,
) *Service {
	return &Service{
		local:   local,
		issuer:  issuer,
		refresh: store,
		mfa:     mfa,
		groups:  groups,
	}
}

// Login authenticates a credential within the tenant carried by ctx.
//
// When the resolved account has MFA active and mfaCode is empty the
// result carries RequiresMfa and no tokens; the password was accepted
// but the session does not exist yet. Any credential mismatch returns
// ErrInvalidCredentials without further detail.
func (s *Service) Login(ctx context.Context, cred Credential, mfaCode string) (*LoginResult, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := cred.ResolveIdentity(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Directory misses are credential mismatches to the caller.
			err = ErrInvalidCredentials
		}

		if errors.Is(err, ErrInvalidCredentials) {
			metrics.Logins.WithLabelValues(metrics.OutcomeInvalidCredentials).Inc()
		} else {
			metrics.Logins.WithLabelValues(metrics.OutcomeError).Inc()
		}

		return nil, err
	}

	user, err := s.resolveUser(ctx, profile, tenantID)
	if err != nil {
		metrics.Logins.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	if user.Status != models.UserStatusActive {
		metrics.Logins.WithLabelValues(metrics.OutcomeInvalidCredentials).Inc()
		return nil, ErrInvalidCredentials
	}

	if s.groups != nil && len(profile.Groups) > 0 {
		if err := s.groups.SyncGroups(ctx, user, profile.Groups); err != nil {
			log.Warn().Err(err).
				Uint64("user_id", user.ID).
				Msg("failed to sync provider groups to roles")
		}
	}

	if user.MfaEnabled && s.mfa != nil {
		if mfaCode == "" {
			metrics.Logins.WithLabelValues(metrics.OutcomeMfaRequired).Inc()
			return &LoginResult{RequiresMfa: true, User: user}, nil
		}

		if err := s.mfa.VerifyLogin(ctx, user, mfaCode); err != nil {
			// Only a code mismatch is the caller's fault; storage or
			// decryption failures stay what they are.
			if errors.Is(err, mfa.ErrInvalidCode) || errors.Is(err, mfa.ErrNotConfigured) {
				metrics.Logins.WithLabelValues(metrics.OutcomeMfaFailed).Inc()
				return nil, ErrInvalidMfaCode
			}

			metrics.Logins.WithLabelValues(metrics.OutcomeError).Inc()

			return nil, err
		}
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		metrics.Logins.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	metrics.Logins.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Info().
		Uint64("user_id", user.ID).
		Uint64("tenant_id", user.TenantID).
		Str("source", string(cred.Source())).
		Msg("user logged in")

	return result, nil
}

// resolveUser maps a verified profile onto a local user record. Password
// profiles were validated against an existing record; external profiles
// are provisioned on first login.
func (s *Service) resolveUser(ctx context.Context, profile *Profile, tenantID uint64) (*models.User, error) {
	if profile.Source == models.AuthSourceLocal {
		return s.local.GetUserByEmail(ctx, profile.Email, tenantID)
	}

	return s.local.ResolveExternal(ctx, profile, tenantID)
}

// Refresh rotates a refresh token and issues a fresh token pair. The
// old token becomes invalid the moment the rotation commits; presenting
// it again afterwards revokes every token of the user, since a replayed
// token means either the client or an interceptor holds a stolen copy.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	rec, err := s.refresh.Validate(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		metrics.TokenRotations.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, ErrTokenInvalidOrRotated
	}

	if tid, ok := tenantctx.From(ctx); ok && tid != rec.TenantID {
		return nil, ErrTenantMismatch
	}

	ctx = tenantctx.WithTenant(ctx, rec.TenantID)

	user, err := s.local.GetUserByID(ctx, rec.UserID, rec.TenantID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// The account is gone; its tokens go with it.
			_ = s.refresh.RevokeAll(ctx, rec.UserID)
			return nil, ErrTokenInvalidOrRotated
		}

		return nil, err
	}

	if user.Status != models.UserStatusActive {
		_ = s.refresh.RevokeAll(ctx, rec.UserID)
		return nil, ErrTokenInvalidOrRotated
	}

	newToken, ok, err := s.refresh.Rotate(ctx, rawToken, user)
	if err != nil {
		return nil, err
	}

	if !ok {
		// The token was active a moment ago and is not anymore: a
		// concurrent rotation won. One of the two presenters is not the
		// legitimate client, so the whole session family is torched.
		metrics.TokenRotations.WithLabelValues(metrics.OutcomeReplayed).Inc()
		log.Warn().
			Uint64("user_id", rec.UserID).
			Uint64("tenant_id", rec.TenantID).
			Msg("refresh token replay detected, revoking all user tokens")

		if err := s.refresh.RevokeAll(ctx, rec.UserID); err != nil {
			return nil, err
		}

		return nil, ErrTokenInvalidOrRotated
	}

	accessToken, err := s.issuer.Generate(user, user.RoleNames())
	if err != nil {
		return nil, err
	}

	metrics.TokenRotations.WithLabelValues(metrics.OutcomeSuccess).Inc()

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: newToken,
		User:         user,
	}, nil
}

// Logout revokes a single refresh token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	return s.refresh.Revoke(ctx, rawToken)
}

// LogoutAll revokes every refresh token of the user.
func (s *Service) LogoutAll(ctx context.Context, userID uint64) error {
	return s.refresh.RevokeAll(ctx, userID)
}

// VerifyAccess parses and verifies an access token and checks that its
// tenant matches the tenant in ctx, if one is set.
func (s *Service) VerifyAccess(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.issuer.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	if tid, ok := tenantctx.From(ctx); ok && tid != claims.TenantID {
		return nil, ErrTenantMismatch
	}

	return claims, nil
}

func (s *Service) issueTokens(ctx context.Context, user *models.User) (*LoginResult, error) {
	accessToken, err := s.issuer.Generate(user, user.RoleNames())
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.refresh.Generate(ctx, user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}
