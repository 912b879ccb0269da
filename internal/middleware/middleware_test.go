package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zillah777/fixia-platform-sub000/internal/auth"
	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	return e
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestErrorHandler_DomainKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.Validation("title is required", ""), http.StatusBadRequest, "validation"},
		{domain.NotFound("request"), http.StatusNotFound, "not_found"},
		{domain.Conflict("already expressed interest", "edit it instead"), http.StatusConflict, "conflict"},
		{domain.Forbidden("not yours", ""), http.StatusForbidden, "forbidden"},
		{domain.Blocked("reviews pending", "leave your reviews", map[string]any{"count": 2}), http.StatusForbidden, "blocked"},
		{domain.Expired("request expired"), http.StatusGone, "expired"},
		{domain.Unavailable(errors.New("db down")), http.StatusServiceUnavailable, "unavailable"},
		{fmt.Errorf("wrapped: %w", domain.Conflict("taken", "")), http.StatusConflict, "conflict"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			e := newEcho()
			e.GET("/x", func(echo.Context) error { return tc.err })
			rec := serve(e, http.MethodGet, "/x", "")
			assert.Equal(t, tc.status, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestErrorHandler_BlockedCarriesDetails(t *testing.T) {
	e := newEcho()
	e.GET("/x", func(echo.Context) error {
		return domain.Blocked("reviews pending", "leave your reviews", map[string]any{"count": 1})
	})
	rec := serve(e, http.MethodGet, "/x", "")

	var body struct {
		Remediation string         `json:"remediation"`
		Details     map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "leave your reviews", body.Remediation)
	assert.Equal(t, float64(1), body.Details["count"])
}

func TestErrorHandler_HidesInternals(t *testing.T) {
	e := newEcho()
	e.GET("/x", func(echo.Context) error { return errors.New("pq: relation users does not exist") })
	rec := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "relation")

	assert.Contains(t, rec.Body.String(), `"remediation"`)

	rec = serve(e, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["code"])
	assert.Equal(t, domain.DefaultRemediation(domain.KindNotFound), body["remediation"])
}

func TestJWTMiddleware(t *testing.T) {
	tokens := auth.NewTokens("secret")
	e := newEcho()
	e.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user": c.Get("user_id"), "role": c.Get("role")})
	}, JWTMiddleware(tokens))

	signed, err := tokens.Issue(domain.User{ID: "ana", Role: domain.RoleProvider})
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/me", signed)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"ana","role":"provider"}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "garbage").Code)
}

func TestRoleGuards(t *testing.T) {
	e := newEcho()
	withRole := func(role string) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.Set("role", role)
				return next(c)
			}
		}
	}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/provider", ok, withRole("provider"), RequireRoles(domain.RoleProvider))
	e.GET("/requester", ok, withRole("provider"), RequireRoles(domain.RoleRequester))
	e.GET("/admin", ok, withRole("admin"), AdminGuard)
	e.GET("/not-admin", ok, withRole("requester"), AdminGuard)

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/provider", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/requester", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/admin", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/not-admin", "").Code)
}

func TestAuthRateLimit(t *testing.T) {
	e := newEcho()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, AuthRateLimit(1, 2))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/login", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/login", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodPost, "/login", "").Code)
}
