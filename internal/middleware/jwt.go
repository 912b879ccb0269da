package middleware

import (
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/auth"
	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

// JWTMiddleware verifies the bearer token and stores user_id and role on
// the context for the handlers. Websocket upgrades may pass the token as
// the token query parameter since browsers cannot set the header.
func JWTMiddleware(tokens *auth.Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok && websocket.IsWebSocketUpgrade(c.Request()) {
				tokenStr = c.QueryParam("token")
				ok = true
			}
			if !ok || tokenStr == "" {
				return domain.Unauthorized("missing token", "log in and send the token as a Bearer header")
			}

			claims, err := tokens.Parse(tokenStr)
			if err != nil {
				return domain.Unauthorized("invalid token", "log in again to get a fresh token")
			}

			c.Set("user_id", claims.UserID)
			c.Set("role", string(claims.Role))
			return next(c)
		}
	}
}
