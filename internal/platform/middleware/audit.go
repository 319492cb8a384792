package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/orthovision/portal/internal/platform/auth"
)

// AuditEntry records who looked at or changed patient data through the
// portal.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Resource   string // patients, radiographs, chat
	PatientID  string
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every request that touches patient data (patient pages,
// radiographs, reports, and the assistant chat). It must run after sign-in
// so the identity is on the request context.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			resource := auditResource(path)
			if resource == "" {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Resource:   resource,
				Path:       path,
				Method:     req.Method,
				Action:     httpMethodToAction(req.Method, path),
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
				PatientID:  extractPatientID(c),
			}
			ctx := req.Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					entry.StatusCode = he.Code
				} else {
					entry.StatusCode = http.StatusInternalServerError
				}
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "patient_data_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("audit")

			return err
		}
	}
}

// auditResource names the kind of patient data under path, or "" when the
// path carries none.
func auditResource(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(segments) == 0:
		return ""
	case segments[0] == "chat":
		return "chat"
	case segments[0] != "patients":
		return ""
	case len(segments) >= 3 && segments[2] == "radiographs":
		return "radiographs"
	default:
		return "patients"
	}
}

// httpMethodToAction maps a request to an audit action. Forms post to
// /edit and /delete paths, so the suffix wins over the method.
func httpMethodToAction(method, path string) string {
	switch {
	case strings.HasSuffix(path, "/delete"):
		return "delete"
	case strings.HasSuffix(path, "/edit") && method == http.MethodPost:
		return "update"
	}
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractPatientID takes the patient id from /patients/<id>/..., falling
// back to the signed-in patient's own record.
func extractPatientID(c echo.Context) string {
	segments := strings.Split(strings.Trim(c.Request().URL.Path, "/"), "/")
	if len(segments) >= 2 && segments[0] == "patients" && segments[1] != "new" {
		return segments[1]
	}
	return auth.PatientIDFromContext(c.Request().Context())
}
