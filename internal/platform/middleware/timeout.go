package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medilocker/medilocker/pkg/envelope"
)

// RequestTimeout puts a deadline on the request context and answers 504 if
// the handler gave up because the deadline passed. The handler runs on the
// calling goroutine, so Recovery still sees its panics.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				return envelope.Fail(c, http.StatusGatewayTimeout, "request processing exceeded the allowed time limit", nil)
			}
			return err
		}
	}
}
