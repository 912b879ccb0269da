package interests

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

type Handlers struct {
	ledger *Ledger
}

func NewHandlers(l *Ledger) *Handlers {
	return &Handlers{ledger: l}
}

// Submit - provider expresses interest in a request
func (h *Handlers) Submit(c echo.Context) error {
	providerID, ok := c.Get("user_id").(string)
	if !ok || providerID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}

	var terms Terms
	if err := c.Bind(&terms); err != nil {
		return domain.Validation("invalid body", "send a JSON body with the documented fields")
	}

	in, err := h.ledger.Submit(c.Request().Context(), providerID, c.Param("id"), terms)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"interest_id": in.ID, "interest": in})
}

// ListForRequest - requester sees every interest on their request
func (h *Handlers) ListForRequest(c echo.Context) error {
	requesterID, ok := c.Get("user_id").(string)
	if !ok || requesterID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	list, err := h.ledger.ListForRequest(c.Request().Context(), requesterID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"interests": list})
}

// Update - provider edits a pending interest
func (h *Handlers) Update(c echo.Context) error {
	providerID, ok := c.Get("user_id").(string)
	if !ok || providerID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}

	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return domain.Validation("invalid body", "send a JSON body with the documented fields")
	}

	out, err := h.ledger.Update(c.Request().Context(), providerID, c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Withdraw - provider retracts a pending interest
func (h *Handlers) Withdraw(c echo.Context) error {
	providerID, ok := c.Get("user_id").(string)
	if !ok || providerID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	out, err := h.ledger.Withdraw(c.Request().Context(), providerID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// ListMine - every interest the provider has submitted
func (h *Handlers) ListMine(c echo.Context) error {
	providerID, ok := c.Get("user_id").(string)
	if !ok || providerID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	list, err := h.ledger.ListMine(c.Request().Context(), providerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"interests": list})
}
