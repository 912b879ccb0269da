// Package auth handles signup, login and session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

const minPasswordLen = 6

type Handlers struct {
	store  store.Store
	tokens *Tokens
	clock  domain.Clock
}

func NewHandlers(s store.Store, tokens *Tokens, clock domain.Clock) *Handlers {
	return &Handlers{store: s, tokens: tokens, clock: clock}
}

type SignupRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

type TokenResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (r *SignupRequest) validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if r.Name == "" {
		return domain.Validation("name is required", "send your full name")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return domain.Validation("email is invalid", "send an address like name@example.com")
	}
	if len(r.Password) < minPasswordLen {
		return domain.Validation("password must be at least 6 characters", "choose a longer password")
	}
	if r.Role == "" {
		r.Role = domain.RoleRequester
	}
	if !r.Role.Switchable() {
		return domain.Validation("role must be requester or provider", "send role requester or provider, or omit it")
	}
	return nil
}

// Register creates the user with the role profile for its starting role.
func (h *Handlers) Register(ctx context.Context, req SignupRequest) (domain.User, error) {
	if err := req.validate(); err != nil {
		return domain.User{}, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	now := h.clock.Now()
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashed),
		Role:         req.Role,
		IsActive:     true,
		CreatedAt:    now,
	}
	err = h.store.InTx(ctx, func(q store.Queries) error {
		if err := q.CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return domain.Conflict("email already exists", "log in instead")
			}
			return err
		}
		if err := q.SetRoleProfile(ctx, domain.RoleProfile{UserID: u.ID, Role: u.Role, Active: true, UpdatedAt: now}); err != nil {
			return err
		}
		if u.Role == domain.RoleProvider {
			return q.SaveWorkProfile(ctx, domain.DefaultWorkProfile(u.ID, now))
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	log.Printf("[auth] user=%s signed up as %s", u.ID, u.Role)
	return u, nil
}

// ===== Signup =====
func (h *Handlers) Signup(c echo.Context) error {
	req := new(SignupRequest)
	if err := c.Bind(req); err != nil {
		return domain.Validation("invalid request", "send a JSON body with the documented fields")
	}

	u, err := h.Register(c.Request().Context(), *req)
	if err != nil {
		return err
	}

	signed, err := h.tokens.Issue(u)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	return c.JSON(http.StatusCreated, TokenResponse{Token: signed, User: u})
}
