package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/orthovision/portal/internal/platform/apiclient"
	"github.com/orthovision/portal/internal/platform/auth"
	"github.com/orthovision/portal/internal/platform/session"
)

// ErrorPage is the data of the "error" page.
type ErrorPage struct {
	Status    int
	Title     string
	Message   string
	RequestID string
}

// SessionEnder ends a session whose API token was refused.
type SessionEnder interface {
	Destroy(c echo.Context) error
	Save(c echo.Context) error
}

// ErrorHandler returns an echo.HTTPErrorHandler for the portal. A token the
// clinic API refuses ends the session and sends the browser to sign in;
// everything else renders the error page, or JSON for clients that ask for
// it.
func ErrorHandler(sessions SessionEnder, logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if apiclient.IsUnauthorized(err) && sessions != nil {
			if derr := sessions.Destroy(c); derr != nil {
				logger.Warn().Err(derr).Msg("end refused session")
			}
			session.From(c).AddFlash("error", "Your session has ended. Please sign in again.")
			if serr := sessions.Save(c); serr != nil {
				logger.Warn().Err(serr).Msg("save sign-in flash")
			}
			if rerr := auth.SignInRedirect(c); rerr != nil {
				logger.Error().Err(rerr).Msg("redirect to sign in")
			}
			return
		}

		page := classify(err)
		page.RequestID = c.Response().Header().Get(echo.HeaderXRequestID)

		evt := logger.Warn()
		if page.Status >= http.StatusInternalServerError {
			evt = logger.Error()
		}
		evt.Err(err).
			Int("status", page.Status).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Str("request_id", page.RequestID).
			Msg("request failed")

		var werr error
		switch {
		case c.Request().Method == http.MethodHead:
			werr = c.NoContent(page.Status)
		case wantsJSON(c):
			werr = c.JSON(page.Status, map[string]string{"error": page.Message})
		default:
			werr = c.Render(page.Status, "error", page)
			if werr != nil {
				werr = c.String(page.Status, page.Message)
			}
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func classify(err error) ErrorPage {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && he.Code < http.StatusInternalServerError {
			msg = s
		}
		return ErrorPage{Status: he.Code, Title: http.StatusText(he.Code), Message: msg}
	}

	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusNotFound {
			return ErrorPage{Status: http.StatusNotFound, Title: "Not Found", Message: "The record you asked for does not exist."}
		}
		return ErrorPage{
			Status:  http.StatusBadGateway,
			Title:   "Clinic service unavailable",
			Message: "The clinic service did not answer as expected. Please try again in a moment.",
		}
	}

	return ErrorPage{
		Status:  http.StatusInternalServerError,
		Title:   "Something went wrong",
		Message: "An unexpected error occurred. Please try again.",
	}
}

func wantsJSON(c echo.Context) bool {
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) && !strings.Contains(accept, echo.MIMETextHTML)
}
