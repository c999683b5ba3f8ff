package config

import (
	"time"

	"github.com/tenantauth/tenantauth/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Redis     Redis
	Log       logger.Log
	Title     string
	Webserver Webserver
	Auth      Auth
	JWT       JWT
	MFA       MFA
	RateLimit RateLimit
	Cache     Cache
}

// Webserver implement webserver settings.
type Webserver struct {
	Domain         string // domain name for the webserver
	Port           int    // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown
	URL            string // base url for the webserver
	DisableRecover bool   // disable recover middleware
}

// Redis holds connection settings for the shared key-value store.
// Refresh tokens, rate-limit windows and the tenant cache live here so
// that every service instance observes the same state.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Auth groups the credential source settings.
type Auth struct {
	Local  LocalAuth
	Google OAuthProvider
	GitHub OAuthProvider
	LDAP   LDAPAuth
}

// LocalAuth enables password authentication against the local database.
type LocalAuth struct {
	Enabled bool
}

// OAuthProvider holds OAuth2/OIDC client settings for one external provider.
type OAuthProvider struct {
	Enabled      bool
	IssuerURL    string // discovery URL for OIDC providers
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// LDAPAuth holds LDAP/Active Directory connection settings.
type LDAPAuth struct {
	Enabled      bool
	Host         string
	Port         int
	UseSSL       bool
	UseTLS       bool
	SkipVerify   bool
	BindDN       string
	BindPassword string
	BaseDN       string
	UserFilter   string
	GroupBaseDN  string
	GroupFilter  string
	Timeout      int
}

// JWT holds access token signing settings.
type JWT struct {
	SigningKey string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// MFA holds TOTP settings. EncryptionKey protects stored seeds at rest
// and must be exactly 32 bytes (AES-256).
type MFA struct {
	Issuer        string
	EncryptionKey string
}

// RateLimit holds the abuse-control window settings.
type RateLimit struct {
	Enabled     bool
	LoginPoints int
	LoginWindow time.Duration
	APIPoints   int
	APIWindow   time.Duration
}

// Cache holds tenant cache settings.
type Cache struct {
	Enabled bool
	Prefix  string
	TTL     time.Duration
}
