package web

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tenantauth/tenantauth/internal/auth"
	"github.com/tenantauth/tenantauth/internal/db/models"
	"github.com/tenantauth/tenantauth/internal/ratelimit"
	"github.com/tenantauth/tenantauth/internal/tenantctx"
)

// Locals keys.
const (
	localRequestID = "request_id"
	localClaims    = "claims"
	localUserID    = "user_id"
)

// tenantHeader carries an explicit tenant selection; without it the
// tenant is resolved from the request host.
const tenantHeader = "X-Tenant-ID"

// tenantDirectoryPartition is the cache partition for the shared
// domain-to-tenant directory, which exists before any tenant is known.
const tenantDirectoryPartition = 0

func (s *Service) requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(localRequestID, id)
		c.Set("X-Request-ID", id)

		return c.Next()
	}
}

func (s *Service) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		reqID, _ := c.Locals(localRequestID).(string)

		entry := log.Info()
		if err != nil || c.Response().StatusCode() >= fiber.StatusInternalServerError {
			entry = log.Error()
		}

		entry.
			Str("request_id", reqID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("duration", time.Since(start)).
			Msg("request")

		return err
	}
}

// resolveTenant establishes the tenant context for the request, either
// from the X-Tenant-ID header or from the request host. The tenant ID
// travels in the request context from here on; no handler or service
// reads it from anywhere else.
func (s *Service) resolveTenant() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenant, err := s.lookupTenant(c)
		if err != nil {
			return respondError(c, err)
		}

		if !tenant.IsUsable() {
			return respondStatus(c, fiber.StatusForbidden, "tenant is not active")
		}

		c.SetUserContext(tenantctx.WithTenant(c.UserContext(), tenant.ID))

		return c.Next()
	}
}

func (s *Service) lookupTenant(c *fiber.Ctx) (*models.Tenant, error) {
	if raw := c.Get(tenantHeader); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, errBadTenantHeader
		}

		return s.tenantByID(c, id)
	}

	host := c.Hostname()
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	return s.tenantByDomain(c, host)
}

func (s *Service) tenantByID(c *fiber.Ctx, id uint64) (*models.Tenant, error) {
	cacheKey := fmt.Sprintf("tenant:id:%d", id)

	var tenant models.Tenant
	if s.deps.Cache.Get(c.UserContext(), tenantDirectoryPartition, cacheKey, &tenant) {
		return &tenant, nil
	}

	if err := s.deps.DB.WithContext(c.UserContext()).First(&tenant, id).Error; err != nil {
		return nil, errUnknownTenant
	}

	s.deps.Cache.Set(c.UserContext(), tenantDirectoryPartition, cacheKey, &tenant, "tenants")

	return &tenant, nil
}

func (s *Service) tenantByDomain(c *fiber.Ctx, domain string) (*models.Tenant, error) {
	cacheKey := "tenant:domain:" + domain

	var tenant models.Tenant
	if s.deps.Cache.Get(c.UserContext(), tenantDirectoryPartition, cacheKey, &tenant) {
		return &tenant, nil
	}

	err := s.deps.DB.WithContext(c.UserContext()).
		Where("domain = ?", domain).
		First(&tenant).Error
	if err != nil {
		return nil, errUnknownTenant
	}

	s.deps.Cache.Set(c.UserContext(), tenantDirectoryPartition, cacheKey, &tenant, "tenants")

	return &tenant, nil
}

// authenticate verifies the bearer token and stores the claims. The
// token's tenant must match the tenant resolved for this request.
func (s *Service) authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)

		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			return respondStatus(c, fiber.StatusUnauthorized, "missing bearer token")
		}

		claims, err := s.deps.Auth.VerifyAccess(c.UserContext(), token)
		if err != nil {
			return respondError(c, err)
		}

		userID, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil {
			return respondError(c, auth.ErrTokenInvalidOrRotated)
		}

		c.Locals(localClaims, claims)
		c.Locals(localUserID, userID)

		return c.Next()
	}
}

// rateLimitAPI applies the per-user request window. The key carries the
// tenant, so a burst in one tenant never drains another's budget.
func (s *Service) rateLimitAPI() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(localUserID).(uint64)

		tenantID, err := tenantctx.Require(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}

		key := fmt.Sprintf("t:%d:u:%d", tenantID, userID)
		res := s.deps.Limiter.Allow(c.UserContext(), "api", key,
			s.cfg.RateLimit.APIPoints, s.cfg.RateLimit.APIWindow)

		setRateLimitHeaders(c, res)

		if !res.Allowed {
			return respondStatus(c, fiber.StatusTooManyRequests, "rate limit exceeded")
		}

		return c.Next()
	}
}

// setRateLimitHeaders announces the window state on every limited
// response, plus Retry-After when the request was rejected.
func setRateLimitHeaders(c *fiber.Ctx, res *ratelimit.Result) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

	if !res.Allowed {
		retry := int(res.RetryAfter(time.Now()).Seconds()) + 1
		c.Set("Retry-After", strconv.Itoa(retry))
	}
}

// requirePermission guards a route with a live permission check.
func (s *Service) requirePermission(resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals(localUserID).(uint64)

		if err := s.deps.RBAC.RequirePermission(c.UserContext(), userID, resource, action); err != nil {
			return respondError(c, err)
		}

		return c.Next()
	}
}

func userIDFromLocals(c *fiber.Ctx) uint64 {
	id, _ := c.Locals(localUserID).(uint64)
	return id
}
