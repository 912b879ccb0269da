package alerts

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Handlers struct {
	store store.Store
	clock domain.Clock
}

func NewHandlers(s store.Store, clock domain.Clock) *Handlers {
	return &Handlers{store: s, clock: clock}
}

// ListNotifications returns current user's notifications, newest first
func (h *Handlers) ListNotifications(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}

	limit := defaultListLimit
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxListLimit {
			limit = n
		}
	}

	ctx := c.Request().Context()
	items, err := store.Get(ctx, h.store, func(q store.Queries) ([]domain.Notification, error) {
		return q.ListNotifications(ctx, userID, limit)
	})
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}

// MarkNotificationRead marks specific notification as read
func (h *Handlers) MarkNotificationRead(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return domain.Unauthorized("unauthorized", "log in and send the token as a Bearer header")
	}
	nid := c.Param("id")
	if nid == "" {
		return domain.Validation("missing notification id", "include the id in the path")
	}

	ctx := c.Request().Context()
	updated, err := store.Get(ctx, h.store, func(q store.Queries) (bool, error) {
		return q.MarkNotificationRead(ctx, nid, userID, h.clock.Now())
	})
	if err != nil {
		return err
	}
	if !updated {
		return domain.NotFound("unread notification")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
}
