package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zillah777/fixia-platform-sub000/internal/domain"
)

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:   http.StatusBadRequest,
	domain.KindNotFound:     http.StatusNotFound,
	domain.KindConflict:     http.StatusConflict,
	domain.KindForbidden:    http.StatusForbidden,
	domain.KindBlocked:      http.StatusForbidden,
	domain.KindExpired:      http.StatusGone,
	domain.KindUnavailable:  http.StatusServiceUnavailable,
	domain.KindUnauthorized: http.StatusUnauthorized,
}

// httpKind names the domain kind closest to an echo HTTP status so router
// errors such as 404 and 405 carry the same remediation hints.
func httpKind(status int) domain.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return domain.KindValidation
	case http.StatusUnauthorized:
		return domain.KindUnauthorized
	case http.StatusForbidden:
		return domain.KindForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return domain.KindNotFound
	case http.StatusServiceUnavailable:
		return domain.KindUnavailable
	}
	return ""
}

// StatusOf maps err to the HTTP status the API answers with.
func StatusOf(err error) int {
	var de *domain.Error
	if errors.As(err, &de) {
		if status, ok := kindStatus[de.Kind]; ok {
			return status
		}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders domain errors as {error, code, remediation, details}.
// A failure without its own remediation gets its kind's default. Anything
// else is logged and answered with a generic 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var body echo.Map
	status := StatusOf(err)

	var de *domain.Error
	var he *echo.HTTPError
	switch {
	case errors.As(err, &de) && status != http.StatusInternalServerError:
		remediation := de.Remediation
		if remediation == "" {
			remediation = domain.DefaultRemediation(de.Kind)
		}
		body = echo.Map{"error": de.Message, "code": string(de.Kind), "remediation": remediation}
		if len(de.Details) > 0 {
			body["details"] = de.Details
		}
		if de.Kind == domain.KindUnavailable {
			log.Printf("[http] %s %s unavailable: %v", c.Request().Method, c.Path(), de.Err)
		}
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		kind := httpKind(he.Code)
		body = echo.Map{"error": msg, "remediation": domain.DefaultRemediation(kind)}
		if kind != "" {
			body["code"] = string(kind)
		}
	default:
		log.Printf("[http] %s %s: %v", c.Request().Method, c.Path(), err)
		body = echo.Map{"error": "internal server error", "remediation": domain.DefaultRemediation("")}
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, body)
	}
	if werr != nil {
		log.Printf("[http] write error response: %v", werr)
	}
}
