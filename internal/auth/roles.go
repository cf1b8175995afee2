package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-service/internal/domain"
	apperrors "github.com/spec-kit/user-service/pkg/util/errorutil"
)

// Allow reports whether caller may act on a resource owned by ownerID.
func Allow(caller domain.Principal, ownerID string) bool {
	if caller.UserID != "" && caller.UserID == ownerID {
		return true
	}
	return caller.IsAdmin()
}

// AuthorizeOwner returns Forbidden unless Allow passes.
func AuthorizeOwner(caller domain.Principal, ownerID string) error {
	if !Allow(caller, ownerID) {
		return apperrors.NewForbidden("forbidden")
	}
	return nil
}

// RequireAdmin returns Forbidden unless the caller is an admin, regardless of ownership.
func RequireAdmin(caller domain.Principal) error {
	if !caller.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// RequireAdminRole ensures the authenticated principal is an admin.
func RequireAdminRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if err := RequireAdmin(principal); err != nil {
			return err
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
