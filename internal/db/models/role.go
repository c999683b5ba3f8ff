package models

import "time"

// Role represents a role in the role-based access control (RBAC) system.
// Roles are tenant-scoped collections of permissions, except system roles
// which are tenant-independent and immutable through normal operations.
type Role struct {
	// ID is the unique identifier for the role.
	ID uint64 `gorm:"primaryKey"`
	// TenantID is the owning tenant; nil for system roles.
	TenantID *uint64 `gorm:"column:tenant_id;uniqueIndex:idx_roles_name_tenant"`
	// Name is the role name, unique within the tenant (e.g., "admin", "member").
	Name string `gorm:"size:100;not null;uniqueIndex:idx_roles_name_tenant"`
	// Description provides a human-readable description of the role's purpose.
	Description string `gorm:"size:255"`
	// IsSystem indicates a built-in role whose name, description and
	// permission membership reject mutation.
	IsSystem bool `gorm:"default:false"`
	// Permissions are the permissions granted by this role.
	Permissions []Permission `gorm:"many2many:role_permissions"`
	// CreatedAt is the timestamp when the role was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the role was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Role model.
func (Role) TableName() string {
	return "roles"
}

// BelongsToTenant reports whether the role may be assigned to users of
// the given tenant. System roles are assignable everywhere.
func (r *Role) BelongsToTenant(tenantID uint64) bool {
	if r.IsSystem {
		return true
	}

	if r.TenantID == nil {
		return false
	}

	return *r.TenantID == tenantID
}
