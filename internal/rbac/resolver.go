// Package rbac resolves role-based permissions within a tenant.
//
// Resolution is always live: every check walks the current role and
// permission assignments in the database. Tokens carry a role snapshot
// for display, but revoking a role or permission takes effect on the
// very next check, not at token expiry.
package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tenantauth/tenantauth/internal/db/models"
	"github.com/tenantauth/tenantauth/internal/tenantctx"
)

// Resolver owns role and permission management and answers
// authorization checks.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a new RBAC resolver.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{
		db: db,
	}
}

// CreateRole creates a tenant-scoped role in the tenant carried by ctx.
func (r *Resolver) CreateRole(ctx context.Context, name, description string) (*models.Role, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return nil, err
	}

	role := models.Role{
		TenantID:    &tenantID,
		Name:        name,
		Description: description,
	}

	if err := r.db.WithContext(ctx).Create(&role).Error; err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	return &role, nil
}

// DeleteRole removes a tenant role and its assignments. System roles
// and roles of other tenants are untouchable.
func (r *Resolver) DeleteRole(ctx context.Context, roleID uint64) error {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return err
	}

	role, err := r.getRole(ctx, roleID)
	if err != nil {
		return err
	}

	if role.IsSystem {
		return ErrSystemRoleImmutable
	}

	if role.TenantID == nil || *role.TenantID != tenantID {
		return ErrTenantMismatch
	}

	return r.db.WithContext(ctx).Select("Permissions").Delete(role).Error
}

// GetRoles lists the roles assignable in the tenant carried by ctx:
// the tenant's own roles plus the system roles.
func (r *Resolver) GetRoles(ctx context.Context) ([]models.Role, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return nil, err
	}

	var roles []models.Role

	err = r.db.WithContext(ctx).
		Preload("Permissions").
		Where("tenant_id = ? OR is_system = ?", tenantID, true).
		Order("name").
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	return roles, nil
}

// AssignRoles adds roles to a user. Every role must belong to the
// user's tenant or be a system role; one bad role fails the whole call
// with nothing assigned.
func (r *Resolver) AssignRoles(ctx context.Context, user *models.User, roleIDs []uint64) error {
	roles, err := r.getRoles(ctx, roleIDs)
	if err != nil {
		return err
	}

	for i := range roles {
		if !roles[i].BelongsToTenant(user.TenantID) {
			return ErrTenantMismatch
		}
	}

	if err := r.db.WithContext(ctx).Model(user).Association("Roles").Append(&roles); err != nil {
		return fmt.Errorf("failed to assign roles: %w", err)
	}

	return nil
}

// RemoveRoles removes roles from a user. Unassigned roles are a no-op.
func (r *Resolver) RemoveRoles(ctx context.Context, user *models.User, roleIDs []uint64) error {
	roles, err := r.getRoles(ctx, roleIDs)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Model(user).Association("Roles").Delete(&roles); err != nil {
		return fmt.Errorf("failed to remove roles: %w", err)
	}

	return nil
}

// AssignPermissions grants permissions to a tenant role. System roles
// reject mutation.
func (r *Resolver) AssignPermissions(ctx context.Context, roleID uint64, permissionIDs []uint64) error {
	role, err := r.mutableRole(ctx, roleID)
	if err != nil {
		return err
	}

	perms, err := r.getPermissions(ctx, permissionIDs)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Model(role).Association("Permissions").Append(&perms); err != nil {
		return fmt.Errorf("failed to assign permissions: %w", err)
	}

	return nil
}

// RemovePermissions revokes permissions from a tenant role. The change
// is visible on the next authorization check for every user holding the
// role.
func (r *Resolver) RemovePermissions(ctx context.Context, roleID uint64, permissionIDs []uint64) error {
	role, err := r.mutableRole(ctx, roleID)
	if err != nil {
		return err
	}

	perms, err := r.getPermissions(ctx, permissionIDs)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Model(role).Association("Permissions").Delete(&perms); err != nil {
		return fmt.Errorf("failed to remove permissions: %w", err)
	}

	return nil
}

// EffectivePermissions returns the deduplicated union of permissions
// across all of the user's roles, read live from the store.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID uint64) ([]models.Permission, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return nil, err
	}

	var perms []models.Permission

	err = r.db.WithContext(ctx).
		Distinct("permissions.*").
		Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Joins("JOIN users ON users.id = user_roles.user_id").
		Where("users.id = ? AND users.tenant_id = ?", userID, tenantID).
		Find(&perms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions: %w", err)
	}

	return perms, nil
}

// HasPermission reports whether the user currently holds the permission
// in the tenant carried by ctx.
func (r *Resolver) HasPermission(ctx context.Context, userID uint64, resource, action string) (bool, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return false, err
	}

	var count int64

	err = r.db.WithContext(ctx).
		Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Joins("JOIN users ON users.id = user_roles.user_id").
		Where("users.id = ? AND users.tenant_id = ?", userID, tenantID).
		Where("permissions.resource = ? AND permissions.action = ?", resource, action).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}

	return count > 0, nil
}

// RequirePermission is HasPermission with a denial error, for guard
// middleware.
func (r *Resolver) RequirePermission(ctx context.Context, userID uint64, resource, action string) error {
	ok, err := r.HasPermission(ctx, userID, resource, action)
	if err != nil {
		return err
	}

	if !ok {
		return ErrPermissionDenied
	}

	return nil
}

// SyncGroups maps provider-side group names onto tenant roles of the
// same name after an external login. The sync is additive: roles
// matching a group are assigned, roles assigned by hand stay untouched.
func (r *Resolver) SyncGroups(ctx context.Context, user *models.User, groups []string) error {
	if len(groups) == 0 {
		return nil
	}

	var roles []models.Role

	err := r.db.WithContext(ctx).
		Where("name IN ?", groups).
		Where("tenant_id = ? OR is_system = ?", user.TenantID, true).
		Find(&roles).Error
	if err != nil {
		return fmt.Errorf("failed to match groups to roles: %w", err)
	}

	if len(roles) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).Model(user).Association("Roles").Append(&roles); err != nil {
		return fmt.Errorf("failed to sync group roles: %w", err)
	}

	log.Debug().
		Uint64("user_id", user.ID).
		Int("matched", len(roles)).
		Msg("synced provider groups to roles")

	return nil
}

func (r *Resolver) getRole(ctx context.Context, roleID uint64) (*models.Role, error) {
	var role models.Role

	if err := r.db.WithContext(ctx).First(&role, roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}

		return nil, fmt.Errorf("failed to query role: %w", err)
	}

	return &role, nil
}

// mutableRole loads a role and rejects system roles and roles outside
// the tenant carried by ctx.
func (r *Resolver) mutableRole(ctx context.Context, roleID uint64) (*models.Role, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return nil, err
	}

	role, err := r.getRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	if role.IsSystem {
		return nil, ErrSystemRoleImmutable
	}

	if role.TenantID == nil || *role.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}

	return role, nil
}

func (r *Resolver) getRoles(ctx context.Context, roleIDs []uint64) ([]models.Role, error) {
	var roles []models.Role

	if err := r.db.WithContext(ctx).Find(&roles, roleIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}

	if len(roles) != len(roleIDs) {
		return nil, ErrRoleNotFound
	}

	return roles, nil
}

func (r *Resolver) getPermissions(ctx context.Context, permissionIDs []uint64) ([]models.Permission, error) {
	var perms []models.Permission

	if err := r.db.WithContext(ctx).Find(&perms, permissionIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}

	if len(perms) != len(permissionIDs) {
		return nil, ErrPermissionNotFound
	}

	return perms, nil
}
