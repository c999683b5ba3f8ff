package models

import (
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// AuthSource represents the authentication source for a user account.
// It indicates how the user authenticates (local password, LDAP, or OAuth).
type AuthSource string

const (
	// AuthSourceLocal indicates the user authenticates with a local database password.
	AuthSourceLocal AuthSource = "local"
	// AuthSourceGoogle indicates the user authenticates via Google OAuth/OIDC.
	AuthSourceGoogle AuthSource = "google"
	// AuthSourceGitHub indicates the user authenticates via GitHub OAuth.
	AuthSourceGitHub AuthSource = "github"
	// AuthSourceLDAP indicates the user authenticates via LDAP or Active Directory.
	AuthSourceLDAP AuthSource = "ldap"
)

// UserStatus represents the account status of a user.
type UserStatus string

const (
	// UserStatusActive indicates the account may log in.
	UserStatusActive UserStatus = "active"
	// UserStatusInactive indicates a deactivated account.
	UserStatusInactive UserStatus = "inactive"
	// UserStatusLocked indicates an account locked by an administrator.
	UserStatusLocked UserStatus = "locked"
	// UserStatusPending indicates an account awaiting activation.
	UserStatusPending UserStatus = "pending"
)

// User represents a user account owned by exactly one tenant.
// The same email may exist in different tenants as distinct records;
// uniqueness is enforced on (email, tenant_id).
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// TenantID is the owning tenant. Every lookup must carry it.
	TenantID uint64 `gorm:"column:tenant_id;not null;uniqueIndex:idx_users_email_tenant"`
	// Tenant is the owning tenant association.
	Tenant Tenant `gorm:"foreignKey:TenantID;references:ID;constraint:OnDelete:RESTRICT,OnUpdate:CASCADE"`
	// Email is the case-normalized login email, unique within the tenant.
	Email string `gorm:"size:255;not null;uniqueIndex:idx_users_email_tenant"`
	// PasswordHash is the Argon2id hashed password (only used for local authentication).
	PasswordHash string `gorm:"size:255"`
	// FirstName is the user's first or given name.
	FirstName string `gorm:"size:100"`
	// LastName is the user's last or family name.
	LastName string `gorm:"size:100"`
	// Language is the user's preferred UI language tag.
	Language string `gorm:"size:10"`
	// Status is the account status; only active accounts may authenticate.
	Status UserStatus `gorm:"type:varchar(20);not null;default:'active'"`
	// AuthSource indicates how this user authenticates.
	AuthSource AuthSource `gorm:"type:varchar(20);not null;default:'local'"`
	// ExternalID is the external identifier for OAuth (sub claim) or LDAP (DN) users.
	ExternalID string `gorm:"size:255"`
	// MfaEnabled is true once the user has verified their first TOTP code.
	MfaEnabled bool `gorm:"not null;default:false"`
	// MfaSecret is the encrypted TOTP seed, empty while MFA is disabled.
	MfaSecret string `gorm:"size:512"`
	// Roles are the tenant-scoped roles assigned to this user.
	Roles []Role `gorm:"many2many:user_roles"`
	// LastLoginAt is the timestamp of the last successful authentication.
	LastLoginAt *time.Time
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time
	// DeletedAt is the soft delete timestamp (nil if not deleted).
	DeletedAt *time.Time
}

// TableName specifies the database table name for the User model.
func (User) TableName() string {
	return "users"
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
// This function should be used when creating or updating local user passwords.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the user's stored hashed password.
// It uses constant-time comparison to prevent timing attacks.
// Returns true if the password matches, false otherwise.
func (u *User) VerifyPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}

// RoleNames returns the names of the user's loaded roles.
// Used to snapshot roles into refresh token records and JWT claims.
func (u *User) RoleNames() []string {
	names := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		names[i] = r.Name
	}

	return names
}
