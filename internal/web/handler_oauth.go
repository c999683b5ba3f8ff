package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tenantauth/tenantauth/internal/auth"
	"github.com/tenantauth/tenantauth/internal/tenantctx"
)

// oauthStateTag groups the short-lived CSRF state entries in the cache.
const oauthStateTag = "oauth-state"

// handleOAuthStart redirects the browser to the provider's consent
// page. The state token binds the eventual callback to this tenant and
// protects against login CSRF.
func (s *Service) handleOAuthStart(c *fiber.Ctx) error {
	tenantID, err := tenantctx.Require(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	var authURL func(string) string

	switch c.Params("provider") {
	case "google":
		if s.deps.Google == nil {
			return respondError(c, errProviderDisabled)
		}

		authURL = s.deps.Google.AuthURL
	case "github":
		if s.deps.GitHub == nil {
			return respondError(c, errProviderDisabled)
		}

		authURL = s.deps.GitHub.AuthURL
	default:
		return respondStatus(c, fiber.StatusNotFound, "unknown provider")
	}

	state := auth.GenerateStateToken()
	s.deps.Cache.Set(c.UserContext(), tenantID, "oauth:state:"+state, true, oauthStateTag)

	return c.Redirect(authURL(state), fiber.StatusTemporaryRedirect)
}

// handleOAuthCallback exchanges the authorization code for a local
// session. The state must match one issued by handleOAuthStart for the
// same tenant.
func (s *Service) handleOAuthCallback(c *fiber.Ctx) error {
	tenantID, err := tenantctx.Require(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	state := c.Query("state")
	code := c.Query("code")

	if state == "" || code == "" {
		return respondStatus(c, fiber.StatusBadRequest, "missing state or code")
	}

	var known bool
	if !s.deps.Cache.Get(c.UserContext(), tenantID, "oauth:state:"+state, &known) {
		return respondStatus(c, fiber.StatusBadRequest, "unknown or expired state")
	}

	// One callback per state.
	s.deps.Cache.Delete(c.UserContext(), tenantID, "oauth:state:"+state)

	var cred auth.Credential

	switch c.Params("provider") {
	case "google":
		if s.deps.Google == nil {
			return respondError(c, errProviderDisabled)
		}

		cred = &auth.OAuthGoogleCredential{Code: code, Provider: s.deps.Google}
	case "github":
		if s.deps.GitHub == nil {
			return respondError(c, errProviderDisabled)
		}

		cred = &auth.OAuthGitHubCredential{Code: code, Provider: s.deps.GitHub}
	default:
		return respondStatus(c, fiber.StatusNotFound, "unknown provider")
	}

	result, err := s.deps.Auth.Login(c.UserContext(), cred, "")
	if err != nil {
		return respondError(c, err)
	}

	if result.RequiresMfa {
		return c.JSON(loginResponse{MfaRequired: true})
	}

	return c.JSON(loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		User:         newUserResponse(result.User),
	})
}
