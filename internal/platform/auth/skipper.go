package auth

import (
	"slices"

	"github.com/labstack/echo/v4"
)

// operationalPaths are served without looking at credentials at all.
var operationalPaths = []string{"/health", "/health/db", "/metrics"}

// PathSkipper skips routes whose pattern is one of paths.
func PathSkipper(paths ...string) func(echo.Context) bool {
	return func(c echo.Context) bool {
		return slices.Contains(paths, c.Path())
	}
}

// AuthSkipper is the Skipper used for JWTConfig.
var AuthSkipper = PathSkipper(operationalPaths...)
