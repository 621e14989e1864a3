// Package handler holds helpers shared by the HTTP handler packages.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/gjall/internal/domain"
)

// statusFromCode maps a domain error code to an HTTP status.
func statusFromCode(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse writes a JSON error body with a status derived from the
// domain error code. Internal errors get a generic message so store and
// provider details never leak to clients.
func ErrorResponse(c echo.Context, err error) error {
	code := domain.ErrorCode(err)
	return c.JSON(statusFromCode(code), echo.Map{
		"error": domain.ErrorMessage(err),
		"code":  code,
	})
}
