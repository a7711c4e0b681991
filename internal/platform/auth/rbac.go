package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole guards a route group. Anonymous callers get 401; callers
// holding none of roles get 403. RoleAdmin passes every guard.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	denied := "required role: " + strings.Join(roles, " or ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if UserIDFromContext(ctx) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !HasAnyRole(RolesFromContext(ctx), roles...) {
				return echo.NewHTTPError(http.StatusForbidden, denied)
			}
			return next(c)
		}
	}
}

// HasAnyRole reports whether held contains RoleAdmin or any of want.
func HasAnyRole(held []string, want ...string) bool {
	if slices.Contains(held, RoleAdmin) {
		return true
	}
	return slices.ContainsFunc(held, func(r string) bool {
		return slices.Contains(want, r)
	})
}
