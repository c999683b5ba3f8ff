package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tenantauth/tenantauth/internal/db/models"
	"github.com/tenantauth/tenantauth/internal/tenantctx"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.Tenant{},
		&models.Permission{},
		&models.Role{},
		&models.User{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

type fixture struct {
	db       *gorm.DB
	resolver *Resolver
	ctx      context.Context

	user      *models.User
	adminRole *models.Role
	sysRole   *models.Role
	readPerm  *models.Permission
	writePerm *models.Permission
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)

	for _, tenant := range []models.Tenant{
		{ID: 1, Name: "t1", Domain: "t1.example.test", Status: models.TenantStatusActive},
		{ID: 2, Name: "t2", Domain: "t2.example.test", Status: models.TenantStatusActive},
	} {
		if err := db.Create(&tenant).Error; err != nil {
			t.Fatalf("failed to seed tenant: %v", err)
		}
	}

	readPerm := &models.Permission{Resource: "users", Action: "read"}
	writePerm := &models.Permission{Resource: "users", Action: "update"}

	for _, p := range []*models.Permission{readPerm, writePerm} {
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("failed to seed permission: %v", err)
		}
	}

	tenantID := uint64(1)
	adminRole := &models.Role{
		TenantID:    &tenantID,
		Name:        "tenant-admin",
		Permissions: []models.Permission{*readPerm, *writePerm},
	}

	if err := db.Create(adminRole).Error; err != nil {
		t.Fatalf("failed to seed role: %v", err)
	}

	sysRole := &models.Role{
		Name:     "admin",
		IsSystem: true,
	}

	if err := db.Create(sysRole).Error; err != nil {
		t.Fatalf("failed to seed system role: %v", err)
	}

	user := &models.User{
		TenantID: 1,
		Email:    "alice@x.test",
		Status:   models.UserStatusActive,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	return &fixture{
		db:        db,
		resolver:  NewResolver(db),
		ctx:       tenantctx.WithTenant(context.Background(), 1),
		user:      user,
		adminRole: adminRole,
		sysRole:   sysRole,
		readPerm:  readPerm,
		writePerm: writePerm,
	}
}

func TestAssignRolesAndResolve(t *testing.T) {
	f := newFixture(t)

	if err := f.resolver.AssignRoles(f.ctx, f.user, []uint64{f.adminRole.ID}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	perms, err := f.resolver.EffectivePermissions(f.ctx, f.user.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if len(perms) != 2 {
		t.Fatalf("expected 2 permissions, got %d", len(perms))
	}

	ok, err := f.resolver.HasPermission(f.ctx, f.user.ID, "users", "read")
	if err != nil || !ok {
		t.Fatalf("expected users.read to hold: ok=%v err=%v", ok, err)
	}

	ok, err = f.resolver.HasPermission(f.ctx, f.user.ID, "roles", "delete")
	if err != nil || ok {
		t.Fatalf("expected roles.delete to be denied: ok=%v err=%v", ok, err)
	}
}

func TestRevocationIsImmediate(t *testing.T) {
	f := newFixture(t)

	if err := f.resolver.AssignRoles(f.ctx, f.user, []uint64{f.adminRole.ID}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	ok, err := f.resolver.HasPermission(f.ctx, f.user.ID, "users", "read")
	if err != nil || !ok {
		t.Fatalf("precondition failed: ok=%v err=%v", ok, err)
	}

	// Revoke the permission from the role; every holder loses it on the
	// next check, with no token or session involvement.
	if err := f.resolver.RemovePermissions(f.ctx, f.adminRole.ID, []uint64{f.readPerm.ID}); err != nil {
		t.Fatalf("remove permission failed: %v", err)
	}

	ok, err = f.resolver.HasPermission(f.ctx, f.user.ID, "users", "read")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}

	if ok {
		t.Fatal("revoked permission still resolves")
	}

	// The sibling permission survives.
	ok, err = f.resolver.HasPermission(f.ctx, f.user.ID, "users", "update")
	if err != nil || !ok {
		t.Fatalf("expected users.update to survive: ok=%v err=%v", ok, err)
	}
}

func TestRemoveRoles(t *testing.T) {
	f := newFixture(t)

	if err := f.resolver.AssignRoles(f.ctx, f.user, []uint64{f.adminRole.ID}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	if err := f.resolver.RemoveRoles(f.ctx, f.user, []uint64{f.adminRole.ID}); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	perms, err := f.resolver.EffectivePermissions(f.ctx, f.user.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if len(perms) != 0 {
		t.Fatalf("expected no permissions after role removal, got %d", len(perms))
	}
}

func TestAssignRoles_CrossTenant(t *testing.T) {
	f := newFixture(t)

	otherTenant := uint64(2)
	foreignRole := &models.Role{TenantID: &otherTenant, Name: "foreign"}

	if err := f.db.Create(foreignRole).Error; err != nil {
		t.Fatalf("failed to seed foreign role: %v", err)
	}

	err := f.resolver.AssignRoles(f.ctx, f.user, []uint64{foreignRole.ID})
	if !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}

	// System roles are assignable in any tenant.
	if err := f.resolver.AssignRoles(f.ctx, f.user, []uint64{f.sysRole.ID}); err != nil {
		t.Fatalf("system role assignment failed: %v", err)
	}
}

func TestSystemRoleImmutable(t *testing.T) {
	f := newFixture(t)

	err := f.resolver.AssignPermissions(f.ctx, f.sysRole.ID, []uint64{f.readPerm.ID})
	if !errors.Is(err, ErrSystemRoleImmutable) {
		t.Fatalf("expected ErrSystemRoleImmutable on assign, got %v", err)
	}

	err = f.resolver.RemovePermissions(f.ctx, f.sysRole.ID, []uint64{f.readPerm.ID})
	if !errors.Is(err, ErrSystemRoleImmutable) {
		t.Fatalf("expected ErrSystemRoleImmutable on remove, got %v", err)
	}

	if err := f.resolver.DeleteRole(f.ctx, f.sysRole.ID); !errors.Is(err, ErrSystemRoleImmutable) {
		t.Fatalf("expected ErrSystemRoleImmutable on delete, got %v", err)
	}
}

func TestMutateRole_CrossTenant(t *testing.T) {
	f := newFixture(t)

	otherCtx := tenantctx.WithTenant(context.Background(), 2)

	err := f.resolver.AssignPermissions(otherCtx, f.adminRole.ID, []uint64{f.readPerm.ID})
	if !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}
}

func TestEffectivePermissions_Union(t *testing.T) {
	f := newFixture(t)

	tenantID := uint64(1)
	second := &models.Role{
		TenantID:    &tenantID,
		Name:        "reader",
		Permissions: []models.Permission{*f.readPerm},
	}

	if err := f.db.Create(second).Error; err != nil {
		t.Fatalf("failed to seed second role: %v", err)
	}

	if err := f.resolver.AssignRoles(f.ctx, f.user, []uint64{f.adminRole.ID, second.ID}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	// users.read is granted by both roles and must appear once.
	perms, err := f.resolver.EffectivePermissions(f.ctx, f.user.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if len(perms) != 2 {
		t.Fatalf("expected deduplicated union of 2, got %d", len(perms))
	}
}

func TestSyncGroups(t *testing.T) {
	f := newFixture(t)

	if err := f.resolver.SyncGroups(f.ctx, f.user, []string{"tenant-admin", "unknown-group"}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	ok, err := f.resolver.HasPermission(f.ctx, f.user.ID, "users", "read")
	if err != nil || !ok {
		t.Fatalf("expected group-mapped role to grant users.read: ok=%v err=%v", ok, err)
	}

	// Syncing again is idempotent.
	if err := f.resolver.SyncGroups(f.ctx, f.user, []string{"tenant-admin"}); err != nil {
		t.Fatalf("repeated sync failed: %v", err)
	}

	var count int64
	if err := f.db.Table("user_roles").Where("user_id = ?", f.user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}

	if count != 1 {
		t.Fatalf("expected a single assignment, got %d", count)
	}
}

func TestRequirePermission(t *testing.T) {
	f := newFixture(t)

	err := f.resolver.RequirePermission(f.ctx, f.user.ID, "users", "read")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	if err := f.resolver.AssignRoles(f.ctx, f.user, []uint64{f.adminRole.ID}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	if err := f.resolver.RequirePermission(f.ctx, f.user.ID, "users", "read"); err != nil {
		t.Fatalf("expected grant, got %v", err)
	}
}
