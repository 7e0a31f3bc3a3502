package middleware

import (
	"github.com/classpilot/api/model"
	"github.com/classpilot/api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// RequireRole ensures the authenticated account holds one of the given
// roles. The role comes from context set by AuthMiddleware.Required, never
// from ambient global state.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account, ok := c.Locals("account").(*model.Account)
		if !ok || account == nil {
			return response.Unauthorized(c, "Authentication required")
		}

		for _, role := range roles {
			if account.Role == role {
				return c.Next()
			}
		}

		return response.Forbidden(c, "Insufficient permissions")
	}
}

// RequireSuperAdmin restricts a route to platform super admins.
func RequireSuperAdmin() fiber.Handler {
	return RequireRole(model.RoleSuperAdmin)
}

// RequireAdmin restricts a route to super admins and institute admins.
func RequireAdmin() fiber.Handler {
	return RequireRole(model.RoleSuperAdmin, model.RoleInstituteAdmin)
}
