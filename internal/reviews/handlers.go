package reviews

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

type Handlers struct {
	svc *Service
}

func NewHandlers(s *Service) *Handlers {
	return &Handlers{svc: s}
}

// Submit - a party rates the counterpart of a completed connection
func (h *Handlers) Submit(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}

	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return domain.Validation("invalid request", "send a JSON body with the documented fields")
	}

	rv, err := h.svc.Submit(c.Request().Context(), userID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"review_id": rv.ID, "review": rv})
}

// Update - author edits a review inside its edit window
func (h *Handlers) Update(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}

	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return domain.Validation("invalid request", "send a JSON body with the documented fields")
	}

	rv, err := h.svc.Update(c.Request().Context(), userID, c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rv)
}

// ListForProvider - public reviews and rating summary for a user
func (h *Handlers) ListForProvider(c echo.Context) error {
	subjectID := c.Param("id")
	if subjectID == "" {
		return domain.Validation("missing provider id", "include the id in the path")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	p, err := h.svc.ListForSubject(c.Request().Context(), subjectID, page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"summary": p.Summary,
		"reviews": p.Reviews,
		"pagination": echo.Map{
			"page":  p.Page,
			"limit": p.Limit,
			"total": p.Total,
		},
	})
}
