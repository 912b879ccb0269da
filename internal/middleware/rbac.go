package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

// RequireRoles ensures the caller's token role is one of roles.
// Usage: g.POST("/requests/:id/interests", h.Submit, RequireRoles(domain.RoleProvider))
func RequireRoles(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if role == "" {
				return domain.Forbidden("role missing", "log in again to get a token with your role")
			}

			for _, r := range roles {
				if domain.Role(role) == r {
					return next(c)
				}
			}
			return domain.Forbidden("access denied", "switch to the "+string(roles[0])+" role first")
		}
	}
}
