package web

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/tenantauth/tenantauth/internal/auth"
	"github.com/tenantauth/tenantauth/internal/tenantctx"
)

func (s *Service) parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return err
	}

	return s.validate.Struct(out)
}

// handleLogin authenticates an email/password pair, optionally with a
// TOTP code, and returns a token pair. The login window is checked
// before any credential work so that guessing attempts burn budget even
// when they fail early.
func (s *Service) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	tenantID, err := tenantctx.Require(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	limitKey := fmt.Sprintf("t:%d:%s:%s", tenantID, req.Email, c.IP())
	res := s.deps.Limiter.Allow(c.UserContext(), "login", limitKey,
		s.cfg.RateLimit.LoginPoints, s.cfg.RateLimit.LoginWindow)

	setRateLimitHeaders(c, res)

	if !res.Allowed {
		return respondStatus(c, fiber.StatusTooManyRequests, "too many login attempts")
	}

	cred, err := s.credentialFor(&req)
	if err != nil {
		return respondError(c, err)
	}

	result, err := s.deps.Auth.Login(c.UserContext(), cred, req.MfaCode)
	if err != nil {
		return respondError(c, err)
	}

	if result.RequiresMfa {
		return c.JSON(loginResponse{MfaRequired: true})
	}

	// A completed login forgives earlier failed attempts in the window.
	s.deps.Limiter.Reset(c.UserContext(), "login", limitKey)

	return c.JSON(loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		User:         newUserResponse(result.User),
	})
}

func (s *Service) credentialFor(req *loginRequest) (auth.Credential, error) {
	if req.Source == "ldap" {
		if s.ldap == nil {
			return nil, errLdapDisabled
		}

		return &auth.LDAPCredential{
			Username: req.Email,
			Password: req.Password,
			Provider: s.ldap,
		}, nil
	}

	return &auth.PasswordCredential{
		Email:    req.Email,
		Password: req.Password,
		Local:    s.deps.Local,
	}, nil
}

// handleRefresh rotates a refresh token and returns the successor pair.
func (s *Service) handleRefresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := s.deps.Auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
	})
}

// handleLogout revokes one refresh token. Always succeeds for unknown
// tokens; revealing whether a token existed helps nobody.
func (s *Service) handleLogout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	if err := s.deps.Auth.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleLogoutAll revokes every refresh token of the calling user.
func (s *Service) handleLogoutAll(c *fiber.Ctx) error {
	if err := s.deps.Auth.LogoutAll(c.UserContext(), userIDFromLocals(c)); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleChangePassword changes the calling user's password and revokes
// all existing sessions.
func (s *Service) handleChangePassword(c *fiber.Ctx) error {
	var req changePasswordRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	userID := userIDFromLocals(c)

	if err := s.deps.Local.ChangePassword(c.UserContext(), userID, req.OldPassword, req.NewPassword); err != nil {
		return respondError(c, err)
	}

	// Old sessions die with the old password.
	if err := s.deps.Auth.LogoutAll(c.UserContext(), userID); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleEffectivePermissions returns the live permission union of the
// calling user.
func (s *Service) handleEffectivePermissions(c *fiber.Ctx) error {
	perms, err := s.deps.RBAC.EffectivePermissions(c.UserContext(), userIDFromLocals(c))
	if err != nil {
		return respondError(c, err)
	}

	out := make([]permissionResponse, len(perms))
	for i, p := range perms {
		out[i] = permissionResponse{ID: p.ID, Resource: p.Resource, Action: p.Action}
	}

	return c.JSON(fiber.Map{"permissions": out})
}
