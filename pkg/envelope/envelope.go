// Package envelope renders the uniform API response body
// {success, message?, data?, errors?} used by every endpoint.
package envelope

import (
	"github.com/labstack/echo/v4"
)

// FieldError describes a validation failure on a single input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Body is the JSON shape written for both successes and failures.
type Body struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// OK writes a successful envelope with the given status.
func OK(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Body{Success: true, Message: message, Data: data})
}

// Fail writes a failed envelope with the given status.
func Fail(c echo.Context, status int, message string, errs []FieldError) error {
	return c.JSON(status, Body{Success: false, Message: message, Errors: errs})
}
