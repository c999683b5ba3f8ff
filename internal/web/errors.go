package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/tenantauth/tenantauth/internal/auth"
	"github.com/tenantauth/tenantauth/internal/mfa"
	"github.com/tenantauth/tenantauth/internal/rbac"
	"github.com/tenantauth/tenantauth/internal/refresh"
	"github.com/tenantauth/tenantauth/internal/tenantctx"
)

var (
	errBadTenantHeader  = errors.New("invalid tenant header")
	errUnknownTenant    = errors.New("unknown tenant")
	errLdapDisabled     = errors.New("ldap authentication is not enabled")
	errProviderDisabled = errors.New("identity provider is not enabled")
)

// respondStatus writes a JSON error body with the given status.
func respondStatus(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// respondError maps service errors onto HTTP statuses. Unknown errors
// become an opaque 500; their detail goes to the log, not the client.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidMfaCode),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalidOrRotated),
		errors.Is(err, mfa.ErrInvalidCode):
		return respondStatus(c, fiber.StatusUnauthorized, err.Error())

	case errors.Is(err, rbac.ErrPermissionDenied),
		errors.Is(err, auth.ErrTenantMismatch),
		errors.Is(err, rbac.ErrTenantMismatch),
		errors.Is(err, rbac.ErrSystemRoleImmutable):
		return respondStatus(c, fiber.StatusForbidden, err.Error())

	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, rbac.ErrRoleNotFound),
		errors.Is(err, rbac.ErrPermissionNotFound),
		errors.Is(err, errUnknownTenant):
		return respondStatus(c, fiber.StatusNotFound, err.Error())

	case errors.Is(err, auth.ErrUserEmailExists):
		return respondStatus(c, fiber.StatusConflict, err.Error())

	case errors.Is(err, auth.ErrInvalidOldPassword),
		errors.Is(err, mfa.ErrNotConfigured),
		errors.Is(err, mfa.ErrAlreadyEnabled),
		errors.Is(err, tenantctx.ErrTenantNotSet),
		errors.Is(err, errBadTenantHeader),
		errors.Is(err, errLdapDisabled),
		errors.Is(err, errProviderDisabled):
		return respondStatus(c, fiber.StatusBadRequest, err.Error())

	case errors.Is(err, refresh.ErrBackendUnavailable):
		log.Error().Err(err).Msg("token store unavailable")
		return respondStatus(c, fiber.StatusServiceUnavailable, "service temporarily unavailable")

	default:
		log.Error().Err(err).Msg("unhandled error")
		return respondStatus(c, fiber.StatusInternalServerError, "internal error")
	}
}
