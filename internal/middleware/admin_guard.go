package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

// AdminGuard ensures only admin users can access admin routes
func AdminGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, ok := c.Get("role").(string)
		if !ok || domain.Role(role) != domain.RoleAdmin {
			return domain.Forbidden("admin access only", "log in with an admin account")
		}
		return next(c)
	}
}
