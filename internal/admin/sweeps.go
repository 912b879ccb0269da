package admin

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h *Handlers) runSweep(c echo.Context, name string, fn Sweep) error {
	n, err := fn(c.Request().Context())
	if err != nil {
		return err
	}
	log.Printf("[admin] manual %s sweep changed %d rows", name, n)
	return c.JSON(http.StatusOK, echo.Map{"sweep": name, "changed": n})
}

// POST /admin/sweeps/requests
func (h *Handlers) SweepRequests(c echo.Context) error {
	return h.runSweep(c, "requests", h.sweepRequests)
}

// POST /admin/sweeps/obligations
func (h *Handlers) SweepObligations(c echo.Context) error {
	return h.runSweep(c, "obligations", h.sweepObligations)
}
