package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func HealthCheck(e echo.Context) error {
	return respond(e, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "instaverse-api",
	}, "OK")
}
