package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medilocker/medilocker/pkg/envelope"
)

func TestStatusOf(t *testing.T) {
	sentinel := errors.New("patient not found")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"operational", NotFound("nope"), http.StatusNotFound},
		{"wrapped operational", fmt.Errorf("ctx: %w", Forbidden("no")), http.StatusForbidden},
		{"wrapped sentinel", Wrap(http.StatusNotFound, sentinel), http.StatusNotFound},
		{"echo http error", echo.NewHTTPError(http.StatusBadRequest, "bad"), http.StatusBadRequest},
		{"no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), http.StatusNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, http.StatusConflict},
		{"fk violation", &pgconn.PgError{Code: "23503"}, http.StatusConflict},
		{"jwt expired", fmt.Errorf("verify: %w", jwt.ErrTokenExpired), http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestWrap_KeepsSentinel(t *testing.T) {
	sentinel := errors.New("share not found")
	err := Wrap(http.StatusNotFound, sentinel)
	assert.ErrorIs(t, err, sentinel)
}

func runHandler(t *testing.T, err error, expose bool) (*httptest.ResponseRecorder, envelope.Body) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	Handler(zerolog.Nop(), expose)(err, c)

	var body envelope.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHandler_HidesInternalMessage(t *testing.T) {
	rec, body := runHandler(t, errors.New("dial tcp 10.0.0.1: refused"), false)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "internal server error", body.Message)
}

func TestHandler_ExposesInternalInDevelopment(t *testing.T) {
	_, body := runHandler(t, errors.New("dial tcp 10.0.0.1: refused"), true)
	assert.Contains(t, body.Message, "refused")
}

func TestHandler_ValidationFields(t *testing.T) {
	rec, body := runHandler(t, Validation(envelope.FieldError{Field: "email", Message: "is required"}), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "email", body.Errors[0].Field)
}
