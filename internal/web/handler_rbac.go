package web

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/tenantauth/tenantauth/internal/tenantctx"
)

func pathID(c *fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("id"), 10, 64)
}

// handleListRoles lists the roles assignable in the request's tenant.
func (s *Service) handleListRoles(c *fiber.Ctx) error {
	roles, err := s.deps.RBAC.GetRoles(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	out := make([]roleResponse, len(roles))
	for i := range roles {
		out[i] = newRoleResponse(&roles[i])
	}

	return c.JSON(fiber.Map{"roles": out})
}

// handleCreateRole creates a tenant-scoped role.
func (s *Service) handleCreateRole(c *fiber.Ctx) error {
	var req createRoleRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	role, err := s.deps.RBAC.CreateRole(c.UserContext(), req.Name, req.Description)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(newRoleResponse(role))
}

// handleDeleteRole deletes a tenant role.
func (s *Service) handleDeleteRole(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondStatus(c, fiber.StatusBadRequest, "invalid role id")
	}

	if err := s.deps.RBAC.DeleteRole(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleAssignPermissions grants permissions to a role. The grant is
// visible to every holder of the role on their next request.
func (s *Service) handleAssignPermissions(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondStatus(c, fiber.StatusBadRequest, "invalid role id")
	}

	var req permissionIDsRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	if err := s.deps.RBAC.AssignPermissions(c.UserContext(), id, req.PermissionIDs); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleRemovePermissions revokes permissions from a role.
func (s *Service) handleRemovePermissions(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondStatus(c, fiber.StatusBadRequest, "invalid role id")
	}

	var req permissionIDsRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	if err := s.deps.RBAC.RemovePermissions(c.UserContext(), id, req.PermissionIDs); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleCreateUser provisions a local user in the request's tenant.
func (s *Service) handleCreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	tenantID, err := tenantctx.Require(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.deps.Local.CreateUser(c.UserContext(), tenantID,
		req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(newUserResponse(user))
}

// handleAssignRoles adds roles to a user of the request's tenant.
func (s *Service) handleAssignRoles(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondStatus(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req roleIDsRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	tenantID, err := tenantctx.Require(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.deps.Local.GetUserByID(c.UserContext(), id, tenantID)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.deps.RBAC.AssignRoles(c.UserContext(), user, req.RoleIDs); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// handleRemoveRoles removes roles from a user of the request's tenant.
func (s *Service) handleRemoveRoles(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondStatus(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req roleIDsRequest
	if err := s.parseBody(c, &req); err != nil {
		return respondStatus(c, fiber.StatusBadRequest, err.Error())
	}

	tenantID, err := tenantctx.Require(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	user, err := s.deps.Local.GetUserByID(c.UserContext(), id, tenantID)
	if err != nil {
		return respondError(c, err)
	}

	if err := s.deps.RBAC.RemoveRoles(c.UserContext(), user, req.RoleIDs); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
