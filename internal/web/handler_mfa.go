package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tenantauth/tenantauth/internal/db/models"
	"github.com/tenantauth/tenantauth/internal/tenantctx"
)

func (s *Service) currentUser(c *fiber.Ctx) (*models.User, error) {
	tenantID, err := tenantctx.Require(c.UserContext())
	if err != nil {
		return nil, err
	}

	return s.deps.Local.GetUserByID(c.UserContext(), userIDFromLocals(c), tenantID)
}

// handleMfaSetup generates a fresh TOTP secret for the calling user.
// The secret and provisioning URL appear in this response and never
// again.
func (s *Service) handleMfaSetup(c *fiber.Ctx) error {
	user, err := s.currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	enrollment, err := s.deps.Mfa.Setup(c.UserContext(), user)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(mfaSetupResponse{
		Secret: enrollment.Secret,
		URL:    enrollment.URL,
	})
}

// handleMfaVerify confirms a pending secret or checks a code against an
// active one. The first successful confirmation activates MFA.
func (s *Service) handleMfaVerify(c *fiber.Ctx) error {
	var req mfaCodeRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := s.currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.deps.Mfa.Verify(c.UserContext(), user, req.Code); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"mfa_enabled": user.MfaEnabled})
}

// handleMfaDisable turns MFA off after verifying a current code.
func (s *Service) handleMfaDisable(c *fiber.Ctx) error {
	var req mfaCodeRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := s.currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.deps.Mfa.Disable(c.UserContext(), user, req.Code); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
