package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/orthovision/portal/internal/platform/auth"
)

const recoveryStackSize = 8 << 10

// Recovery turns a panicking page handler into a 500 error page and logs the
// panic with the route and the signed-in user. http.ErrAbortHandler is
// re-raised so net/http can drop the connection.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("%v", r)
				}

				stack := make([]byte, recoveryStackSize)
				stack = stack[:runtime.Stack(stack, false)]

				req := c.Request()
				ev := logger.Error().
					Err(cause).
					Str("method", req.Method).
					Str("route", c.Path()).
					Str("path", req.URL.Path).
					Bytes("stack", stack)
				if rid, ok := c.Get("request_id").(string); ok {
					ev = ev.Str("request_id", rid)
				}
				if uid := auth.UserIDFromContext(req.Context()); uid != "" {
					ev = ev.Str("user_id", uid).Strs("roles", auth.RolesFromContext(req.Context()))
				}
				ev.Msg("page handler panicked")

				err = echo.NewHTTPError(http.StatusInternalServerError,
					"Something went wrong. Please try again.").SetInternal(errors.Join(errPanic, cause))
			}()
			return next(c)
		}
	}
}

var errPanic = errors.New("handler panic")
