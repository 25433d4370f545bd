package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const identityKey contextKey = "identity"

// AccessVerifier validates an access token. *TokenIssuer implements it.
type AccessVerifier interface {
	VerifyAccess(token string) (Identity, error)
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JWTMiddleware requires a valid Bearer access token.
func JWTMiddleware(v AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			token, ok := bearerToken(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}
			id, err := v.VerifyAccess(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}
			setIdentity(c, id)
			return next(c)
		}
	}
}

// OptionalJWT attaches the identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalJWT(v AccessVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token, ok := bearerToken(c); ok {
				if id, err := v.VerifyAccess(token); err == nil {
					setIdentity(c, id)
				}
			}
			return next(c)
		}
	}
}

func setIdentity(c echo.Context, id Identity) {
	c.Set("admin_id", id.AdminID.String())
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
