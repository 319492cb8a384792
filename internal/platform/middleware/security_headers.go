package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets response headers for the server-rendered portal.
// Pages load scripts, styles, and images from the portal only, except for
// radiograph images, which imgSources may add (the clinic API's host). Style
// attributes are allowed for the positioned tooth regions.
func SecurityHeaders(hsts bool, imgSources ...string) echo.MiddlewareFunc {
	img := "'self' data:"
	for _, src := range imgSources {
		if src != "" {
			img += " " + src
		}
	}
	csp := "default-src 'self'; img-src " + img +
		"; style-src 'self'; style-src-attr 'unsafe-inline'; script-src 'self'; form-action 'self'; frame-ancestors 'none'; base-uri 'self'"

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("Content-Security-Policy", csp)
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			h.Set("Referrer-Policy", "same-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// Pages carry patient data; images and static assets set their own.
			if h.Get("Cache-Control") == "" {
				h.Set("Cache-Control", "no-store")
			}

			return next(c)
		}
	}
}
