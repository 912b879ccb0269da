package obligations

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

type Handlers struct {
	gate *Gate
}

func NewHandlers(g *Gate) *Handlers {
	return &Handlers{gate: g}
}

// BlockingStatus - whether the caller is blocked and why
func (h *Handlers) BlockingStatus(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	st, err := h.gate.Status(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

// ListMine - every obligation the caller owes, resolved or not
func (h *Handlers) ListMine(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	obs, err := h.gate.ListMine(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"obligations": obs})
}
