package web

import "github.com/tenantauth/tenantauth/internal/db/models"

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MfaCode  string `json:"mfa_code" validate:"omitempty,len=6,numeric"`
	// Source selects the credential backend: "local" (default) or "ldap".
	Source string `json:"source" validate:"omitempty,oneof=local ldap"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=12"`
}

type mfaCodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=255"`
}

type permissionIDsRequest struct {
	PermissionIDs []uint64 `json:"permission_ids" validate:"required,min=1"`
}

type roleIDsRequest struct {
	RoleIDs []uint64 `json:"role_ids" validate:"required,min=1"`
}

type createUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=12"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type loginResponse struct {
	AccessToken  string        `json:"access_token,omitempty"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	TokenType    string        `json:"token_type,omitempty"`
	MfaRequired  bool          `json:"mfa_required,omitempty"`
	User         *userResponse `json:"user,omitempty"`
}

type userResponse struct {
	ID        uint64   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Roles     []string `json:"roles"`
}

func newUserResponse(user *models.User) *userResponse {
	return &userResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Roles:     user.RoleNames(),
	}
}

type mfaSetupResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

type permissionResponse struct {
	ID       uint64 `json:"id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type roleResponse struct {
	ID          uint64               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []permissionResponse `json:"permissions"`
}

func newRoleResponse(role *models.Role) roleResponse {
	perms := make([]permissionResponse, len(role.Permissions))
	for i, p := range role.Permissions {
		perms[i] = permissionResponse{ID: p.ID, Resource: p.Resource, Action: p.Action}
	}

	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		IsSystem:    role.IsSystem,
		Permissions: perms,
	}
}
