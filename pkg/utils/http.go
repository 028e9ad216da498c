package utils

import (
	"github.com/labstack/echo/v4"
)

// GetRequestID reads the request id set by the RequestID middleware.
func GetRequestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// ErrorResponse is the uniform error payload returned by handlers.
func ErrorResponse(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
