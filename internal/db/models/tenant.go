package models

import "time"

// TenantStatus represents the lifecycle status of a tenant.
type TenantStatus string

const (
	// TenantStatusActive indicates a fully provisioned, billable tenant.
	TenantStatusActive TenantStatus = "active"
	// TenantStatusSuspended indicates a tenant blocked by an administrative action.
	TenantStatusSuspended TenantStatus = "suspended"
	// TenantStatusTrial indicates a tenant in its evaluation period.
	TenantStatusTrial TenantStatus = "trial"
	// TenantStatusArchived indicates a tenant retained for record keeping only.
	TenantStatusArchived TenantStatus = "archived"
)

// Tenant represents an isolated customer organization. All tenant-scoped
// data is partitioned by the tenant's ID; nothing crosses this boundary
// without an explicit tenant identifier.
type Tenant struct {
	// ID is the unique identifier for the tenant.
	ID uint64 `gorm:"primaryKey"`
	// Name is the unique display name of the organization.
	Name string `gorm:"unique;size:255;not null"`
	// Domain is the unique domain used to resolve the tenant from a request host.
	Domain string `gorm:"unique;size:255;not null"`
	// Status is the administrative lifecycle status.
	Status TenantStatus `gorm:"type:varchar(20);not null;default:'trial'"`
	// Plan is the subscription plan identifier.
	Plan string `gorm:"size:50"`
	// Features holds tenant feature flags as a JSON document.
	Features string `gorm:"type:text"`
	// CreatedAt is the timestamp when the tenant was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the tenant was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Tenant model.
func (Tenant) TableName() string {
	return "tenants"
}

// IsUsable reports whether users of this tenant may authenticate.
func (t *Tenant) IsUsable() bool {
	return t.Status == TenantStatusActive || t.Status == TenantStatusTrial
}
