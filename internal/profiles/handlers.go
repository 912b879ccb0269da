package profiles

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

type Handlers struct {
	dir *Directory
}

func NewHandlers(d *Directory) *Handlers {
	return &Handlers{dir: d}
}

// GET /profile/work
func (h *Handlers) GetWork(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("invalid or missing token", "log in and send the token as a Bearer header")
	}
	p, err := h.dir.Get(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// PATCH /profile/work
func (h *Handlers) UpdateWork(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("invalid or missing token", "log in and send the token as a Bearer header")
	}

	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return domain.Validation("invalid request", "send a JSON body with the documented fields")
	}

	p, err := h.dir.Update(c.Request().Context(), userID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "profile updated successfully",
		"profile": p,
	})
}

// GET /users/:id/profile
func (h *Handlers) GetPublic(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return domain.Validation("missing user id", "include the id in the path")
	}
	p, err := h.dir.Public(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
