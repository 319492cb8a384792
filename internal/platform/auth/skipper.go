package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths lists routes reachable without signing in.
var publicPaths = map[string]bool{
	"/":           true,
	"/health":     true,
	"/signin":     true,
	"/signup":     true,
	"/images/:id": true,
}

// AuthSkipper returns true for requests whose route needs no session.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether the given route is public.
func IsPublicPath(path string) bool {
	return publicPaths[path] || strings.HasPrefix(path, "/static")
}
