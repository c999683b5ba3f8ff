package models

import "time"

// Permission represents a specific permission in the authorization system.
// Permissions are global (not tenant-scoped) and unique per (resource, action).
// They are assigned to roles, which are then assigned to users.
type Permission struct {
	// ID is the unique identifier for the permission.
	ID uint64 `gorm:"primaryKey"`
	// Resource is the resource this permission applies to (e.g., "users", "roles").
	Resource string `gorm:"size:100;not null;uniqueIndex:idx_permissions_resource_action"`
	// Action is the action allowed on the resource (e.g., "read", "update").
	Action string `gorm:"size:50;not null;uniqueIndex:idx_permissions_resource_action"`
	// Conditions holds optional structured predicate data as a JSON document.
	Conditions string `gorm:"type:text"`
	// Description provides a human-readable explanation of what this permission grants.
	Description string `gorm:"size:255"`
	// CreatedAt is the timestamp when the permission was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the permission was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Permission model.
func (Permission) TableName() string {
	return "permissions"
}

// Key returns the canonical "resource.action" identifier of the permission.
func (p *Permission) Key() string {
	return p.Resource + "." + p.Action
}
