// Package mfa implements the TOTP second factor. An account moves
// through three states: disabled (no secret), pending (secret stored,
// not yet confirmed) and enabled (first code verified). Login only
// demands a code in the enabled state, so an abandoned setup never
// locks anyone out.
package mfa

import (
	"context"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tenantauth/tenantauth/internal/db/models"
)

// totpPeriod is the TOTP time step in seconds.
const totpPeriod = 30

// Enrollment is handed to the user exactly once, at setup time. The
// secret is never readable again afterwards.
type Enrollment struct {
	// Secret is the base32 TOTP seed for manual entry.
	Secret string
	// URL is the otpauth:// provisioning URL for QR rendering.
	URL string
}

// Engine drives the TOTP state machine. Secrets are stored AES-256-GCM
// encrypted; the engine is the only component that ever sees them in
// the clear.
type Engine struct {
	db     *gorm.DB
	issuer string
	key    []byte
	now    func() time.Time
}

// NewEngine creates a TOTP engine. key must be exactly 32 bytes.
func NewEngine(db *gorm.DB, issuer string, key []byte) (*Engine, error) {
	if len(key) != encryptionKeySize {
		return nil, ErrInvalidKeySize
	}

	return &Engine{
		db:     db,
		issuer: issuer,
		key:    key,
		now:    time.Now,
	}, nil
}

// Setup generates a fresh TOTP secret for the user and stores it in the
// pending state. Login does not demand a code until the user confirms
// the secret through Verify; a second Setup before confirmation simply
// replaces the pending secret.
func (e *Engine) Setup(ctx context.Context, user *models.User) (*Enrollment, error) {
	if user.MfaEnabled {
		return nil, ErrAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: user.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	sealed, err := sealSecret(e.key, key.Secret())
	if err != nil {
		return nil, err
	}

	err = e.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"mfa_secret":  sealed,
			"mfa_enabled": false,
		}).Error
	if err != nil {
		return nil, err
	}

	user.MfaSecret = sealed
	user.MfaEnabled = false

	return &Enrollment{
		Secret: key.Secret(),
		URL:    key.URL(),
	}, nil
}

// Verify checks a code against the stored secret. The first successful
// verification of a pending secret activates MFA for the account.
func (e *Engine) Verify(ctx context.Context, user *models.User, code string) error {
	if user.MfaSecret == "" {
		return ErrNotConfigured
	}

	secret, err := openSecret(e.key, user.MfaSecret)
	if err != nil {
		return err
	}

	valid, err := totp.ValidateCustom(code, secret, e.now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return err
	}

	if !valid {
		return ErrInvalidCode
	}

	if !user.MfaEnabled {
		err = e.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("mfa_enabled", true).Error
		if err != nil {
			return err
		}

		user.MfaEnabled = true

		log.Info().
			Uint64("user_id", user.ID).
			Uint64("tenant_id", user.TenantID).
			Msg("mfa enabled")
	}

	return nil
}

// VerifyLogin checks a login-time code. Unlike Verify it requires the
// account to be in the enabled state; a pending secret does not gate
// login.
func (e *Engine) VerifyLogin(ctx context.Context, user *models.User, code string) error {
	if !user.MfaEnabled {
		return ErrNotConfigured
	}

	return e.Verify(ctx, user, code)
}

// Disable verifies a current code and then removes the secret, moving
// the account back to the disabled state. Requiring the code keeps a
// session thief from silently stripping the second factor.
func (e *Engine) Disable(ctx context.Context, user *models.User, code string) error {
	if !user.MfaEnabled {
		return ErrNotConfigured
	}

	if err := e.Verify(ctx, user, code); err != nil {
		return err
	}

	err := e.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"mfa_secret":  "",
			"mfa_enabled": false,
		}).Error
	if err != nil {
		return err
	}

	user.MfaSecret = ""
	user.MfaEnabled = false

	log.Info().
		Uint64("user_id", user.ID).
		Uint64("tenant_id", user.TenantID).
		Msg("mfa disabled")

	return nil
}
