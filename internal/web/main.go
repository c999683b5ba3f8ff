// Package web exposes the authentication service as a JSON API.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tenantauth/tenantauth/internal/auth"
	"github.com/tenantauth/tenantauth/internal/cache"
	"github.com/tenantauth/tenantauth/internal/config"
	"github.com/tenantauth/tenantauth/internal/mfa"
	"github.com/tenantauth/tenantauth/internal/ratelimit"
	"github.com/tenantauth/tenantauth/internal/rbac"
)

// Deps are the wired services the web layer exposes.
type Deps struct {
	DB      *gorm.DB
	Auth    *auth.Service
	Local   *auth.LocalProvider
	LDAP    *auth.LDAPProvider
	Google  *auth.OIDCProvider
	GitHub  *auth.GitHubProvider
	Mfa     *mfa.Engine
	RBAC    *rbac.Resolver
	Limiter *ratelimit.Limiter
	Cache   *cache.Cache
}

// Service represents the web service.
type Service struct {
	App   *fiber.App
	cfg   *config.Config
	deps  Deps
	ldap  *auth.LDAPProvider
	alive atomic.Bool

	validate *validator.Validate
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: fail the health check first
	// so the load balancer drains this instance before it stops.
	log.Info().Msgf(
		"graceful shutdown: return 503 for %d seconds to let LB remove this instance from active targets",
		s.cfg.Webserver.ShutDownTime,
	)

	s.alive.Store(false)
	time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)

	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		if err := s.App.Shutdown(); err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, deps Deps) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if deps.DB == nil {
		panic("db cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	service := &Service{
		cfg:      cfg,
		App:      app,
		deps:     deps,
		ldap:     deps.LDAP,
		validate: validator.New(),
	}

	service.alive.Store(true)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	app.Use(service.requestID())
	app.Use(service.requestLogger())

	app.Get("/healthz", service.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Everything below runs inside a tenant context.
	api := app.Group("/", service.resolveTenant())

	authGroup := api.Group("/auth")
	authGroup.Post("/login", service.handleLogin)
	authGroup.Post("/refresh", service.handleRefresh)
	authGroup.Post("/logout", service.handleLogout)
	authGroup.Get("/oauth/:provider", service.handleOAuthStart)
	authGroup.Get("/oauth/:provider/callback", service.handleOAuthCallback)

	// Authenticated routes: bearer token plus the per-user API window.
	session := api.Group("/", service.authenticate(), service.rateLimitAPI())

	session.Post("/auth/logout-all", service.handleLogoutAll)
	session.Post("/auth/password", service.handleChangePassword)
	session.Get("/auth/permissions", service.handleEffectivePermissions)

	mfaGroup := session.Group("/auth/mfa")
	mfaGroup.Post("/setup", service.handleMfaSetup)
	mfaGroup.Post("/verify", service.handleMfaVerify)
	mfaGroup.Post("/disable", service.handleMfaDisable)

	roles := session.Group("/roles")
	roles.Get("/", service.requirePermission("roles", "read"), service.handleListRoles)
	roles.Post("/", service.requirePermission("roles", "create"), service.handleCreateRole)
	roles.Delete("/:id", service.requirePermission("roles", "delete"), service.handleDeleteRole)
	roles.Post("/:id/permissions", service.requirePermission("roles", "update"), service.handleAssignPermissions)
	roles.Delete("/:id/permissions", service.requirePermission("roles", "update"), service.handleRemovePermissions)

	users := session.Group("/users")
	users.Post("/", service.requirePermission("users", "create"), service.handleCreateUser)
	users.Post("/:id/roles", service.requirePermission("users", "update"), service.handleAssignRoles)
	users.Delete("/:id/roles", service.requirePermission("users", "update"), service.handleRemoveRoles)

	return service
}

func (s *Service) handleHealth(c *fiber.Ctx) error {
	if !s.alive.Load() {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
