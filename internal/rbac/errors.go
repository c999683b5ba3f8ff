package rbac

import "errors"

var (
	// ErrSystemRoleImmutable is returned when a mutation targets a
	// built-in system role. System roles keep their permission membership
	// for the lifetime of the deployment.
	ErrSystemRoleImmutable = errors.New("system roles cannot be modified")

	// ErrPermissionDenied is returned when the user does not hold the
	// required permission in the tenant.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrRoleNotFound is returned when a referenced role does not exist.
	ErrRoleNotFound = errors.New("role not found")

	// ErrPermissionNotFound is returned when a referenced permission does not exist.
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrTenantMismatch is returned when a role from one tenant is
	// assigned to a user of another.
	ErrTenantMismatch = errors.New("role does not belong to the user's tenant")
)
