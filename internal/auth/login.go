package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ===== Login =====
func (h *Handlers) Login(c echo.Context) error {
	req := new(LoginRequest)
	if err := c.Bind(req); err != nil {
		return domain.Validation("invalid request", "send a JSON body with the documented fields")
	}

	ctx := c.Request().Context()
	u, err := store.Get(ctx, h.store, func(q store.Queries) (domain.User, error) {
		return q.GetUserByEmail(ctx, req.Email)
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.Unauthorized("invalid credentials", "check your email and password")
	}
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return domain.Unauthorized("invalid credentials", "check your email and password")
	}
	if !u.IsActive {
		return domain.Forbidden("account suspended", "contact support to reactivate your account")
	}

	signed, err := h.tokens.Issue(u)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: signed, User: u})
}
