package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/orthovision/portal/internal/platform/session"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// HasRole reports whether the caller holds any of roles.
func HasRole(ctx context.Context, roles ...string) bool {
	for _, required := range roles {
		for _, has := range RolesFromContext(ctx) {
			if has == required {
				return true
			}
		}
	}
	return false
}

// CanViewPatient reports whether the caller may open a patient's pages.
// Doctors may open any patient the API returns to them; a patient only
// their own record.
func CanViewPatient(ctx context.Context, patientID string) bool {
	if HasRole(ctx, session.RoleDoctor) {
		return true
	}
	own := PatientIDFromContext(ctx)
	return HasRole(ctx, session.RolePatient) && own != "" && own == patientID
}
