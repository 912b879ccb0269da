package connections

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

type Handlers struct {
	coord *Coordinator
}

func NewHandlers(co *Coordinator) *Handlers {
	return &Handlers{coord: co}
}

// ConfirmCompletion - one party attests the service was delivered
func (h *Handlers) ConfirmCompletion(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}

	var in ConfirmInput
	if err := c.Bind(&in); err != nil {
		return domain.Validation("invalid body", "send a JSON body with the documented fields")
	}

	res, err := h.coord.Confirm(c.Request().Context(), c.Param("id"), userID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// Status - confirmation progress for the caller
func (h *Handlers) Status(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	st, err := h.coord.Status(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

// ListMine - connections where the caller is either party
func (h *Handlers) ListMine(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	list, err := h.coord.ListMine(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"connections": list})
}

// Cancel - either party cancels before anyone confirms
func (h *Handlers) Cancel(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	conn, err := h.coord.Cancel(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conn)
}
