package requests

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

type Handlers struct {
	registry *Registry
}

func NewHandlers(rg *Registry) *Handlers {
	return &Handlers{registry: rg}
}

// Create - requester posts a new service request
func (h *Handlers) Create(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}

	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return domain.Validation("invalid body", "send a JSON body with the documented fields")
	}

	r, err := h.registry.Create(c.Request().Context(), userID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":         r.ID,
		"expires_at": r.ExpiresAt,
		"request":    r,
	})
}

// Get - fetch one request
func (h *Handlers) Get(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	r, err := h.registry.Get(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// ListMine - the caller's requests, optionally filtered by status
func (h *Handlers) ListMine(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	status := domain.RequestStatus(c.QueryParam("status"))
	list, err := h.registry.ListMine(c.Request().Context(), userID, status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"requests": list})
}

// Update - requester edits an active request
func (h *Handlers) Update(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}

	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return domain.Validation("invalid body", "send a JSON body with the documented fields")
	}

	r, err := h.registry.Update(c.Request().Context(), userID, c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Cancel - requester withdraws an active request
func (h *Handlers) Cancel(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	r, err := h.registry.Cancel(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

type selectBody struct {
	InterestID string `json:"interest_id"`
}

// Select - requester accepts one interest and opens the connection
func (h *Handlers) Select(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}

	var body selectBody
	if err := c.Bind(&body); err != nil || body.InterestID == "" {
		return domain.Validation("interest_id is required", "add it to the JSON body")
	}

	sel, err := h.registry.Select(c.Request().Context(), userID, c.Param("id"), body.InterestID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"connection_id": sel.Connection.ID,
		"channel_id":    sel.Connection.ChannelID,
		"connection":    sel.Connection,
	})
}
