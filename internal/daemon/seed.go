package daemon

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tenantauth/tenantauth/internal/db/models"
)

// seed installs the permission catalog and the built-in system roles.
// Runs on every start; existing rows are left alone.
func seed(db *gorm.DB) {
	permissions := []models.Permission{
		{Resource: "users", Action: "create"},
		{Resource: "users", Action: "read"},
		{Resource: "users", Action: "update"},
		{Resource: "users", Action: "delete"},
		{Resource: "roles", Action: "create"},
		{Resource: "roles", Action: "read"},
		{Resource: "roles", Action: "update"},
		{Resource: "roles", Action: "delete"},
		{Resource: "tokens", Action: "revoke"},
	}

	db.Clauses(clause.OnConflict{DoNothing: true}).Create(&permissions)

	var count int64

	db.Model(&models.Role{}).Where("is_system = ?", true).Count(&count)
	if count > 0 {
		return
	}

	var all []models.Permission

	db.Find(&all)

	var readOnly []models.Permission

	db.Where("action = ?", "read").Find(&readOnly)

	db.Create(&models.Role{
		Name:        "admin",
		Description: "Full administrative access within the tenant",
		IsSystem:    true,
		Permissions: all,
	})

	db.Create(&models.Role{
		Name:        "member",
		Description: "Read-only access within the tenant",
		IsSystem:    true,
		Permissions: readOnly,
	})
}
