// Package daemon wires the configured backends into a runnable service.
package daemon

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tenantauth/tenantauth/internal/auth"
	"github.com/tenantauth/tenantauth/internal/cache"
	"github.com/tenantauth/tenantauth/internal/config"
	"github.com/tenantauth/tenantauth/internal/db/dsn"
	"github.com/tenantauth/tenantauth/internal/db/models"
	"github.com/tenantauth/tenantauth/internal/mfa"
	"github.com/tenantauth/tenantauth/internal/ratelimit"
	"github.com/tenantauth/tenantauth/internal/rbac"
	"github.com/tenantauth/tenantauth/internal/refresh"
	"github.com/tenantauth/tenantauth/internal/web"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start starts the Daemon's web service.
func (d *Daemon) Start() error {
	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// WaitShutdown blocks until a termination signal arrives, then drains
// and stops the web service.
func (d *Daemon) WaitShutdown() {
	d.webService.WaitShutdown()
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db := openDatabase(cfg)

	// Explicit join models give the assignments CASCADE semantics.
	if err := db.SetupJoinTable(&models.User{}, "Roles", &models.UserRole{}); err != nil {
		log.Fatal().Err(err).Msg("failed to set up user_roles join table")
	}

	if err := db.SetupJoinTable(&models.Role{}, "Permissions", &models.RolePermission{}); err != nil {
		log.Fatal().Err(err).Msg("failed to set up role_permissions join table")
	}

	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.Permission{},
		&models.Role{},
		&models.User{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	seed(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	local := auth.NewLocalProvider(db)
	issuer := auth.NewTokenIssuer(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTTL)
	store := refresh.NewRedisStore(redisClient, cfg.Cache.Prefix, cfg.JWT.RefreshTTL)
	resolver := rbac.NewResolver(db)

	engine, err := mfa.NewEngine(db, cfg.MFA.Issuer, []byte(cfg.MFA.EncryptionKey))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize mfa engine")
	}

	var ldapProvider *auth.LDAPProvider
	if cfg.Auth.LDAP.Enabled {
		ldapProvider = auth.NewLDAPProvider(cfg.Auth.LDAP)

		if err := ldapProvider.TestConnection(); err != nil {
			log.Warn().Err(err).Msg("ldap connection test failed, continuing anyway")
		}
	}

	var googleProvider *auth.OIDCProvider
	if cfg.Auth.Google.Enabled {
		googleProvider, err = auth.NewOIDCProvider(context.Background(), cfg.Auth.Google)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize google oidc provider")
		}
	}

	var githubProvider *auth.GitHubProvider
	if cfg.Auth.GitHub.Enabled {
		githubProvider = auth.NewGitHubProvider(cfg.Auth.GitHub)
	}

	deps := web.Deps{
		DB:      db,
		Auth:    auth.NewService(local, issuer, store, engine, resolver),
		Local:   local,
		LDAP:    ldapProvider,
		Google:  googleProvider,
		GitHub:  githubProvider,
		Mfa:     engine,
		RBAC:    resolver,
		Limiter: ratelimit.NewLimiter(redisClient, cfg.Cache.Prefix, cfg.RateLimit.Enabled),
		Cache:   cache.New(redisClient, cfg.Cache.Prefix, cfg.Cache.TTL, cfg.Cache.Enabled),
	}

	return &Daemon{
		cfg:        cfg,
		webService: web.New(cfg, deps),
	}
}

func openDatabase(cfg *config.Config) *gorm.DB {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "postgres":
		dialector = gormpostgres.Open(dsn.Create(cfg))
	case "sqlite":
		dialector = sqlite.Open(cfg.DB.Name)
	default:
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	return db
}
