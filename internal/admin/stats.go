// Package admin serves the operator endpoints.
package admin

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/profiles"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

// Sweep runs one maintenance pass and reports how many rows it changed.
type Sweep func(ctx context.Context) (int, error)

type Handlers struct {
	store            store.Store
	dir              *profiles.Directory
	sweepRequests    Sweep
	sweepObligations Sweep
}

func NewHandlers(s store.Store, dir *profiles.Directory, sweepRequests, sweepObligations Sweep) *Handlers {
	return &Handlers{store: s, dir: dir, sweepRequests: sweepRequests, sweepObligations: sweepObligations}
}

// GET /admin/stats
func (h *Handlers) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	st, err := store.Get(ctx, h.store, func(q store.Queries) (domain.Stats, error) {
		return q.Stats(ctx)
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}
