package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout sets a context deadline on each request. Outbound clinic API
// calls inherit it, so a slow analysis is cut off and the browser gets a 504
// instead of hanging.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
					return gatewayTimeoutError()
				}
				return err
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					// Wait for the handler so it does not write concurrently
					// with the error handler.
					<-done
					return gatewayTimeoutError()
				}
				return ctx.Err()
			}
		}
	}
}

func gatewayTimeoutError() error {
	return echo.NewHTTPError(http.StatusGatewayTimeout,
		"The clinic service took too long to respond. Please try again.")
}
