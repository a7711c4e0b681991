package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestTimeout puts a deadline on the request context. When the handler
// returns after the deadline without having written a response, the client
// gets 504 and the handler's own error is logged and dropped.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Response().Committed {
				return err
			}
			zerolog.Ctx(ctx).Warn().
				Err(err).
				Str("route", c.Path()).
				Dur("timeout", timeout).
				Msg("request deadline exceeded")
			return c.JSON(http.StatusGatewayTimeout, map[string]string{
				"message": "the clinic service took too long to answer, please retry",
			})
		}
	}
}
