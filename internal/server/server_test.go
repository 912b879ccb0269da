package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zillah777/fixia-platform-sub000/internal/auth"
	"github.com/zillah777/fixia-platform-sub000/internal/config"
	"github.com/zillah777/fixia-platform-sub000/internal/store/memory"
	"github.com/zillah777/fixia-platform-sub000/internal/testutil"
)

type client struct {
	t *testing.T
	e *echo.Echo
}

func (c client) do(method, path, token string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (c client) raw(method, path, token, body string) (int, map[string]any) {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.e.ServeHTTP(rec, req)

	out := map[string]any{}
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func (c client) signup(name, role string) string {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/auth/signup", "", echo.Map{
		"name": name, "email": name + "@fixia.test", "password": "secret1", "role": role,
	})
	require.Equal(c.t, http.StatusCreated, status, body)
	return body["token"].(string)
}

func newTestApp(t *testing.T) (*App, *testutil.Clock, client) {
	t.Helper()
	clock := testutil.NewClock(testutil.T0)
	app := NewApp(Deps{
		Store:     memory.New(),
		Clock:     clock,
		Tuning:    config.DefaultTuning(),
		JWTSecret: "test-secret",
	})
	return app, clock, client{t: t, e: app.Router()}
}

func TestHealthAndAuth(t *testing.T) {
	_, _, c := newTestApp(t)

	status, _ := c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = c.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = c.do(http.MethodGet, "/requests/mine", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	token := c.signup("ana", "requester")
	status, body := c.do(http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ana@fixia.test", body["email"])

	status, body = c.do(http.MethodGet, "/obligations/mine", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["obligations"], "empty list renders as []")

	status, body = c.do(http.MethodGet, "/profile/work", token, nil)
	assert.Equal(t, http.StatusForbidden, status, body)

	status, _ = c.do(http.MethodGet, "/admin/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestFailuresCarryRemediation(t *testing.T) {
	_, _, c := newTestApp(t)
	alice := c.signup("alice", "requester")
	bob := c.signup("bob", "provider")

	cases := []struct {
		name, method, path, token, body string
		status                          int
	}{
		{"no token", http.MethodGet, "/requests/mine", "", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/requests/mine", "garbage", "", http.StatusUnauthorized},
		{"wrong password", http.MethodPost, "/auth/login", "", `{"email":"alice@fixia.test","password":"nope"}`, http.StatusUnauthorized},
		{"malformed body", http.MethodPost, "/requests", alice, `{"title":`, http.StatusBadRequest},
		{"missing fields", http.MethodPost, "/requests", alice, `{}`, http.StatusBadRequest},
		{"provider posts request", http.MethodPost, "/requests", bob, `{}`, http.StatusForbidden},
		{"requester reads work profile", http.MethodGet, "/profile/work", alice, "", http.StatusForbidden},
		{"non-admin", http.MethodGet, "/admin/stats", alice, "", http.StatusForbidden},
		{"unknown request", http.MethodGet, "/requests/00000000-0000-0000-0000-000000000000", alice, "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/nowhere", alice, "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := c.raw(tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, status, body)
			assert.NotEmpty(t, body["error"])
			assert.NotEmpty(t, body["remediation"], body)
		})
	}
}

func TestEmergencyScenarioOverHTTP(t *testing.T) {
	app, clock, c := newTestApp(t)
	ctx := context.Background()

	alice := c.signup("alice", "requester")
	bob := c.signup("bob", "provider")
	c.signup("root", "requester")
	_, err := auth.PromoteAdmin(ctx, app.Store, "root@fixia.test")
	require.NoError(t, err)
	status, body := c.do(http.MethodPost, "/auth/login", "", echo.Map{"email": "root@fixia.test", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)
	root := body["token"].(string)

	// Bob becomes eligible for plumbing in Rawson.
	status, body = c.do(http.MethodPatch, "/profile/work", bob, echo.Map{
		"categories": []string{"plumbing"}, "localities": []string{"rawson"}, "available": true,
	})
	require.Equal(t, http.StatusOK, status, body)
	_, bobMe := c.do(http.MethodGet, "/auth/me", bob, nil)
	bobID := bobMe["id"].(string)
	status, body = c.do(http.MethodPost, "/admin/providers/"+bobID+"/verification", root, echo.Map{"verified": true, "tier": "basic"})
	require.Equal(t, http.StatusOK, status, body)

	// Alice posts an emergency and Bob is notified.
	status, body = c.do(http.MethodPost, "/requests", alice, echo.Map{
		"category_id": "plumbing", "locality": "rawson", "title": "Burst pipe",
		"description": "Water everywhere", "urgency_tier": "emergency",
	})
	require.Equal(t, http.StatusCreated, status, body)
	requestID := body["id"].(string)
	app.Wait()

	_, notes := c.do(http.MethodGet, "/notifications", bob, nil)
	assert.Contains(t, mustJSON(t, notes), "new_service_request")

	status, body = c.do(http.MethodPost, "/requests/"+requestID+"/interests", bob, echo.Map{"proposed_price": 15000, "message": "on my way"})
	require.Equal(t, http.StatusOK, status, body)
	interestID := body["interest_id"].(string)

	status, body = c.do(http.MethodPost, "/requests/"+requestID+"/interests", bob, echo.Map{"proposed_price": 14000})
	assert.Equal(t, http.StatusConflict, status, body)
	assert.NotEmpty(t, body["remediation"])

	status, body = c.do(http.MethodPost, "/requests/"+requestID+"/select", bob, echo.Map{"interest_id": interestID})
	assert.Equal(t, http.StatusForbidden, status, body)
	assert.NotEmpty(t, body["remediation"])

	status, body = c.do(http.MethodPost, "/requests/"+requestID+"/select", alice, echo.Map{"interest_id": interestID})
	require.Equal(t, http.StatusOK, status, body)
	connID := body["connection_id"].(string)
	assert.NotEmpty(t, body["channel_id"])

	// Both confirm completion.
	status, body = c.do(http.MethodPost, "/connections/"+connID+"/confirm-completion", bob, echo.Map{"note": "fixed"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, false, body["both_confirmed"])
	status, body = c.do(http.MethodPost, "/connections/"+connID+"/confirm-completion", alice, echo.Map{"evidence": true})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["both_confirmed"])

	// A week passes without reviews.
	clock.Advance(7*24*time.Hour + time.Minute)
	status, body = c.do(http.MethodPost, "/admin/sweeps/obligations", root, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(2), body["changed"])

	status, body = c.do(http.MethodGet, "/obligations/blocking-status", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["blocked"])

	newRequest := echo.Map{
		"category_id": "plumbing", "locality": "rawson", "title": "Leaky tap",
		"description": "Drips all night", "urgency_tier": "low",
	}
	status, body = c.do(http.MethodPost, "/requests", alice, newRequest)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "blocked", body["code"])
	assert.NotEmpty(t, body["remediation"])

	status, body = c.do(http.MethodGet, "/roles/can-switch", bob, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, false, body["allowed"])

	// Alice reviews Bob and may post again.
	status, body = c.do(http.MethodPost, "/reviews", alice, echo.Map{"connection_id": connID, "rating": 5, "comment": "fast"})
	require.Equal(t, http.StatusCreated, status, body)
	status, body = c.do(http.MethodPost, "/requests", alice, newRequest)
	assert.Equal(t, http.StatusCreated, status, body)
	app.Wait()

	status, body = c.do(http.MethodGet, "/providers/"+bobID+"/reviews", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, mustJSON(t, body), "fast")
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
