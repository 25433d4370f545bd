// Package apperror defines the operational error type returned by services
// and the echo error handler that turns any error into a response envelope.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medilocker/medilocker/pkg/envelope"
)

// Error is an expected failure carrying the HTTP status it maps to.
type Error struct {
	Status  int
	Message string
	Fields  []envelope.FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap attaches a status to a sentinel error, keeping it reachable via errors.Is.
func Wrap(status int, err error) *Error {
	return &Error{Status: status, Message: err.Error(), Err: err}
}

func BadRequest(msg string) *Error     { return New(http.StatusBadRequest, msg) }
func Unauthorized(msg string) *Error   { return New(http.StatusUnauthorized, msg) }
func Forbidden(msg string) *Error      { return New(http.StatusForbidden, msg) }
func NotFound(msg string) *Error       { return New(http.StatusNotFound, msg) }
func Conflict(msg string) *Error       { return New(http.StatusConflict, msg) }
func Unavailable(msg string) *Error    { return New(http.StatusServiceUnavailable, msg) }
func BadGateway(msg string) *Error     { return New(http.StatusBadGateway, msg) }
func NotImplemented(msg string) *Error { return New(http.StatusNotImplemented, msg) }

// Validation builds a 400 carrying per-field messages.
func Validation(fields ...envelope.FieldError) *Error {
	return &Error{Status: http.StatusBadRequest, Message: "validation failed", Fields: fields}
}

// StatusOf reports the HTTP status err would be rendered with.
func StatusOf(err error) int {
	status, _, _ := classify(err)
	return status
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func classify(err error) (int, string, []envelope.FieldError) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Message, appErr.Fields
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		return he.Code, msg, nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return http.StatusNotFound, "resource not found", nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return http.StatusConflict, "resource already exists", nil
		case pgForeignKeyViolation:
			return http.StatusConflict, "referenced resource does not exist or is still in use", nil
		}
	}

	if errors.Is(err, jwt.ErrTokenMalformed) || errors.Is(err, jwt.ErrTokenExpired) ||
		errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenNotValidYet) ||
		errors.Is(err, jwt.ErrTokenInvalidClaims) || errors.Is(err, jwt.ErrTokenUnverifiable) {
		return http.StatusUnauthorized, "invalid or expired token", nil
	}

	return http.StatusInternalServerError, err.Error(), nil
}

// Handler returns an echo.HTTPErrorHandler that writes every error as an
// envelope. Messages of unexpected errors are hidden unless exposeInternal.
func Handler(logger zerolog.Logger, exposeInternal bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg, fields := classify(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
			if status == http.StatusInternalServerError && !exposeInternal {
				msg = "internal server error"
			}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = envelope.Fail(c, status, msg, fields)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
