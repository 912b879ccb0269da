package admin

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/profiles"
)

// POST /admin/providers/:id/verification
// Records the outcome of identity verification or a subscription change
// decided outside the platform.
func (h *Handlers) SetVerification(c echo.Context) error {
	providerID := c.Param("id")
	if providerID == "" {
		return domain.Validation("provider id required", "include the id in the path")
	}

	var in profiles.VerificationInput
	if err := c.Bind(&in); err != nil {
		return domain.Validation("invalid request", "send a JSON body with the documented fields")
	}

	p, err := h.dir.SetVerification(c.Request().Context(), providerID, in)
	if err != nil {
		return err
	}
	adminID, _ := c.Get("user_id").(string)
	log.Printf("[admin] %s set provider=%s verified=%t tier=%s", adminID, providerID, p.Verified, p.Tier)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "provider updated",
		"profile": p,
	})
}
