// Package config handles input from etc/main.toml and environment overrides.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	defaultShutDownTime = 5
	defaultAccessTTL    = 15 * time.Minute
	defaultRefreshTTL   = 7 * 24 * time.Hour
	defaultLoginPoints  = 5
	defaultLoginWindow  = 15 * time.Minute
	defaultAPIPoints    = 100
	defaultAPIWindow    = time.Minute
	defaultCacheTTL     = 5 * time.Minute

	mfaKeyLength = 32
)

// ReadConfig reads the main configuration from the given path (directory
// containing main.toml). Environment variables prefixed with TENANTAUTH_
// override file values, e.g. TENANTAUTH_DB_PASSWORD.
func ReadConfig(path string) (Config, error) {
	var c Config

	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	v.SetConfigName("main")
	v.SetConfigType("toml")
	v.AddConfigPath(path)

	v.SetEnvPrefix("TENANTAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode main config file")
	}

	applyDefaults(&c)

	return c, validate(c)
}

func applyDefaults(c *Config) {
	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = defaultShutDownTime
	}

	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = defaultAccessTTL
	}

	if c.JWT.RefreshTTL == 0 {
		c.JWT.RefreshTTL = defaultRefreshTTL
	}

	if c.RateLimit.LoginPoints == 0 {
		c.RateLimit.LoginPoints = defaultLoginPoints
	}

	if c.RateLimit.LoginWindow == 0 {
		c.RateLimit.LoginWindow = defaultLoginWindow
	}

	if c.RateLimit.APIPoints == 0 {
		c.RateLimit.APIPoints = defaultAPIPoints
	}

	if c.RateLimit.APIWindow == 0 {
		c.RateLimit.APIWindow = defaultAPIWindow
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = defaultCacheTTL
	}

	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "tenantauth"
	}
}

// validate checks the minimal settings the daemon can not start without.
func validate(c Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.JWT.SigningKey == "" {
		return errors.Wrap(ErrEmptySigningKey, invalidErrMessage)
	}

	if len(c.MFA.EncryptionKey) != mfaKeyLength {
		return errors.Wrap(ErrBadMFAKeyLength, invalidErrMessage)
	}

	if c.Redis.Addr == "" {
		return errors.Wrap(ErrEmptyRedisAddr, invalidErrMessage)
	}

	return nil
}
