package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/zillah777/fixia-platform-sub000/internal/admin"
	"github.com/zillah777/fixia-platform-sub000/internal/alerts"
	"github.com/zillah777/fixia-platform-sub000/internal/auth"
	"github.com/zillah777/fixia-platform-sub000/internal/connections"
	"github.com/zillah777/fixia-platform-sub000/internal/domain"
	"github.com/zillah777/fixia-platform-sub000/internal/interests"
	mware "github.com/zillah777/fixia-platform-sub000/internal/middleware"
	"github.com/zillah777/fixia-platform-sub000/internal/obligations"
	"github.com/zillah777/fixia-platform-sub000/internal/profiles"
	"github.com/zillah777/fixia-platform-sub000/internal/requests"
	"github.com/zillah777/fixia-platform-sub000/internal/reviews"
	"github.com/zillah777/fixia-platform-sub000/internal/roles"
)

// Router builds the echo instance serving every route.
func (a *App) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = mware.ErrorHandler

	// Basic middleware
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := a.Store.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "store unreachable", "remediation": domain.DefaultRemediation(domain.KindUnavailable)})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	authH := auth.NewHandlers(a.Store, a.Tokens, a.Clock)
	requestH := requests.NewHandlers(a.Registry)
	interestH := interests.NewHandlers(a.Ledger)
	connH := connections.NewHandlers(a.Coordinator)
	obligationH := obligations.NewHandlers(a.Gate)
	reviewH := reviews.NewHandlers(a.Reviews)
	roleH := roles.NewHandlers(a.Roles, a.Tokens.Issue)
	profileH := profiles.NewHandlers(a.Directory)
	notifyH := alerts.NewHandlers(a.Store, a.Clock)
	adminH := admin.NewHandlers(a.Store, a.Directory, a.Registry.SweepExpired, a.Gate.SweepOverdue)

	// Public routes
	// Auth routes with per-IP rate limiting to protect signup/login from abuse
	authGroup := e.Group("/auth")
	authGroup.POST("/signup", authH.Signup, mware.AuthRateLimit(a.authRatePerMinute, a.authRatePerMinute))
	authGroup.POST("/login", authH.Login, mware.AuthRateLimit(a.authRatePerMinute, a.authRatePerMinute))

	e.GET("/providers/:id/reviews", reviewH.ListForProvider)
	e.GET("/users/:id/profile", profileH.GetPublic)

	// Protected routes
	api := e.Group("")
	api.Use(mware.JWTMiddleware(a.Tokens))

	api.GET("/auth/me", authH.Me)
	api.GET("/ws", a.Hub.Serve)

	requester := mware.RequireRoles(domain.RoleRequester)
	provider := mware.RequireRoles(domain.RoleProvider)

	api.POST("/requests", requestH.Create, requester)
	api.GET("/requests/mine", requestH.ListMine)
	api.GET("/requests/:id", requestH.Get)
	api.PATCH("/requests/:id", requestH.Update)
	api.POST("/requests/:id/cancel", requestH.Cancel)
	api.POST("/requests/:id/select", requestH.Select, requester)

	api.POST("/requests/:id/interests", interestH.Submit, provider)
	api.GET("/requests/:id/interests", interestH.ListForRequest)
	api.GET("/interests/mine", interestH.ListMine, provider)
	api.PATCH("/interests/:id", interestH.Update, provider)
	api.POST("/interests/:id/withdraw", interestH.Withdraw, provider)

	api.GET("/connections/mine", connH.ListMine)
	api.GET("/connections/:id/status", connH.Status)
	api.POST("/connections/:id/confirm-completion", connH.ConfirmCompletion)
	api.POST("/connections/:id/cancel", connH.Cancel)

	api.GET("/obligations/blocking-status", obligationH.BlockingStatus)
	api.GET("/obligations/mine", obligationH.ListMine)

	api.POST("/reviews", reviewH.Submit)
	api.PATCH("/reviews/:id", reviewH.Update)

	api.GET("/roles/can-switch", roleH.CanSwitch)
	api.POST("/roles/switch", roleH.Switch)
	api.GET("/roles/history", roleH.History)

	api.GET("/profile/work", profileH.GetWork, provider)
	api.PATCH("/profile/work", profileH.UpdateWork, provider)

	api.GET("/notifications", notifyH.ListNotifications)
	api.POST("/notifications/:id/read", notifyH.MarkNotificationRead)

	// Admin routes
	adm := e.Group("/admin")
	adm.Use(mware.JWTMiddleware(a.Tokens))
	adm.Use(mware.AdminGuard)

	adm.GET("/stats", adminH.Stats)
	adm.POST("/providers/:id/verification", adminH.SetVerification)
	adm.POST("/sweeps/requests", adminH.SweepRequests)
	adm.POST("/sweeps/obligations", adminH.SweepObligations)

	return e
}
