package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

// Me returns the currently authenticated user's profile
func (h *Handlers) Me(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}

	ctx := c.Request().Context()
	u, err := store.Get(ctx, h.store, func(q store.Queries) (domain.User, error) {
		return q.GetUser(ctx, userID, false)
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound("user")
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	})
}

// PromoteAdmin gives the user with email the admin role. It backs the
// operator CLI; there is no HTTP route for it.
func PromoteAdmin(ctx context.Context, s store.Store, email string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.User{}, fmt.Errorf("email required")
	}
	var out domain.User
	err := s.InTx(ctx, func(q store.Queries) error {
		u, err := q.GetUserByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("no user found with email %s: %w", email, err)
		}
		if err := q.SetUserRole(ctx, u.ID, domain.RoleAdmin); err != nil {
			return err
		}
		u.Role = domain.RoleAdmin
		out = u
		return nil
	})
	return out, err
}
