package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-service/internal/api/dto"
	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/service"
	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

// UsersHandler exposes profile and role management.
type UsersHandler struct {
	users     *service.UserService
	validator *Validator
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService, validator *Validator) *UsersHandler {
	return &UsersHandler{users: users, validator: validator}
}

// List handles GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	filter, err := parseUserFilter(c)
	if err != nil {
		return err
	}

	users, total, err := h.users.List(c.UserContext(), caller, filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.UserListResponse{Users: users, Total: total})
}

// Get handles GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Update handles PATCH /users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := h.validator.bind(c, &req); err != nil {
		return err
	}

	user, err := h.users.Update(c.UserContext(), caller, c.Params("id"), req.ProfileUpdate())
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Delete handles DELETE /users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.UserContext(), caller, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateRole handles PATCH /users/:id/role.
func (h *UsersHandler) UpdateRole(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateRoleRequest
	if err := h.validator.bind(c, &req); err != nil {
		return err
	}

	user, err := h.users.UpdateRole(c.UserContext(), caller, c.Params("id"), domain.Role(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func callerFrom(c *fiber.Ctx) (domain.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Principal{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseUserFilter(c *fiber.Ctx) (domain.UserFilter, error) {
	var filter domain.UserFilter

	if raw := c.Query("role"); raw != "" {
		role, ok := domain.ParseRole(raw)
		if !ok {
			return filter, apperrors.NewValidationError("invalid role filter", map[string]any{"role": raw})
		}
		filter.Role = &role
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewValidationError("active must be true or false", map[string]any{"active": raw})
		}
		filter.Active = &active
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, apperrors.NewValidationError("limit must be a non-negative integer", nil)
		}
		filter.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, apperrors.NewValidationError("offset must be a non-negative integer", nil)
		}
		filter.Offset = offset
	}
	return filter.Normalize(), nil
}
