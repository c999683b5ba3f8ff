package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tenantauth/tenantauth/internal/db/models"
)

// LocalProvider validates claimed identities against the local database
// and owns user provisioning within a tenant.
type LocalProvider struct {
	db *gorm.DB
}

const whereEmailAndTenant = "email = ? AND tenant_id = ?"

// NewLocalProvider creates a new local credential provider.
func NewLocalProvider(db *gorm.DB) *LocalProvider {
	return &LocalProvider{
		db: db,
	}
}

// Validate checks an email/password pair within a tenant.
// It returns (nil, nil) for unknown email, wrong password and disabled
// account alike: the caller cannot tell which case occurred, and neither
// can an attacker probing for registered addresses. A non-nil error
// means the store itself failed.
func (p *LocalProvider) Validate(ctx context.Context, email, password string, tenantID uint64) (*models.User, error) {
	var user models.User

	err := p.db.WithContext(ctx).
		Preload("Roles").
		Where(whereEmailAndTenant, models.NormalizeEmail(email), tenantID).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Burn comparable time so the miss is not observable by latency.
		_ = (&models.User{PasswordHash: dummyHash}).VerifyPassword(password)

		return nil, nil //nolint:nilnil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if user.Status != models.UserStatusActive {
		return nil, nil //nolint:nilnil
	}

	if !user.VerifyPassword(password) {
		return nil, nil //nolint:nilnil
	}

	now := time.Now()
	user.LastLoginAt = &now
	p.db.WithContext(ctx).Model(&user).Update("last_login_at", now)

	return &user, nil
}

// dummyHash is a valid argon2id hash of a random throwaway value, used
// to equalize timing between the user-missing and wrong-password paths.
const dummyHash = "$argon2id$v=19$m=65536,t=1,p=2$kXkcGeLzGVklGF7RFLXswA$rCWP4trZf5MSSTr5AbvjdqQyYEeKYXrhmFDKyfd7Bsw"

// ResolveExternal finds or creates the local user record for an
// already-verified external profile within the given tenant. A profile
// without an email is a hard failure.
func (p *LocalProvider) ResolveExternal(ctx context.Context, profile *Profile, tenantID uint64) (*models.User, error) {
	if profile.Email == "" {
		return nil, ErrProfileEmailMissing
	}

	var user models.User

	err := p.db.WithContext(ctx).
		Preload("Roles").
		Where("external_id = ? AND auth_source = ? AND tenant_id = ?",
			profile.ExternalID, profile.Source, tenantID).
		First(&user).Error

	notFound := errors.Is(err, gorm.ErrRecordNotFound)

	if notFound {
		user = models.User{
			TenantID:   tenantID,
			Email:      models.NormalizeEmail(profile.Email),
			FirstName:  profile.FirstName,
			LastName:   profile.LastName,
			Status:     models.UserStatusActive,
			AuthSource: profile.Source,
			ExternalID: profile.ExternalID,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}

		if err = p.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		return &user, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	// Refresh profile fields from the provider on every login.
	user.Email = models.NormalizeEmail(profile.Email)
	user.FirstName = profile.FirstName
	user.LastName = profile.LastName
	user.UpdatedAt = time.Now()

	if err = p.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return &user, nil
}

// CreateUser creates a new local user within a tenant.
func (p *LocalProvider) CreateUser(
	ctx context.Context,
	tenantID uint64,
	email, password, firstName, lastName string,
) (*models.User, error) {
	email = models.NormalizeEmail(email)

	var existing models.User

	err := p.db.WithContext(ctx).
		Where(whereEmailAndTenant, email, tenantID).
		First(&existing).Error
	if err == nil {
		return nil, ErrUserEmailExists
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	user := models.User{
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: models.HashPassword(password),
		FirstName:    firstName,
		LastName:     lastName,
		Status:       models.UserStatusActive,
		AuthSource:   models.AuthSourceLocal,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := p.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// ChangePassword changes a user's password after verifying the old one.
func (p *LocalProvider) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	var user models.User
	if err := p.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	if !user.VerifyPassword(oldPassword) {
		return ErrInvalidOldPassword
	}

	return p.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password_hash", models.HashPassword(newPassword)).Error
}

// GetUserByEmail retrieves a user with roles preloaded, scoped by tenant.
func (p *LocalProvider) GetUserByEmail(ctx context.Context, email string, tenantID uint64) (*models.User, error) {
	var user models.User

	err := p.db.WithContext(ctx).
		Preload("Roles").
		Where(whereEmailAndTenant, models.NormalizeEmail(email), tenantID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &user, nil
}

// GetUserByID retrieves a user with roles preloaded, scoped by tenant.
func (p *LocalProvider) GetUserByID(ctx context.Context, userID, tenantID uint64) (*models.User, error) {
	var user models.User

	err := p.db.WithContext(ctx).
		Preload("Roles").
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &user, nil
}
