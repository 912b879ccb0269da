package roles

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

// TokenIssuer mints a session token carrying the user's current role.
type TokenIssuer func(u domain.User) (string, error)

type Handlers struct {
	guard *Guard
	issue TokenIssuer
}

func NewHandlers(g *Guard, issue TokenIssuer) *Handlers {
	return &Handlers{guard: g, issue: issue}
}

// CanSwitch - whether the caller may switch role right now
func (h *Handlers) CanSwitch(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	d, err := h.guard.CanSwitch(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

type switchBody struct {
	Role domain.Role `json:"role"`
}

// Switch - move the caller to another role and hand back a fresh token
func (h *Handlers) Switch(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}

	var body switchBody
	if err := c.Bind(&body); err != nil || body.Role == "" {
		return domain.Validation("role is required", "add it to the JSON body")
	}

	u, err := h.guard.Switch(c.Request().Context(), userID, body.Role)
	if err != nil {
		return err
	}
	token, err := h.issue(u)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "role switched",
		"role":    u.Role,
		"token":   token,
	})
}

// History - the caller's past role switches
func (h *Handlers) History(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	list, err := h.guard.History(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"changes": list})
}
