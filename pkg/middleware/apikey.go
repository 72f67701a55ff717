package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
)

// HeaderAPIKey is the shared-secret header sync clients authenticate with.
const HeaderAPIKey = "X-API-Key"

// APIKey enforces the shared-secret key on every route except health checks.
// Legacy desktop exporters send the key as an api_key query parameter, so
// that is accepted too. An empty configured key disables the check, which is
// only sensible for local development.
func APIKey(logger ectologger.Logger, key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" {
				return next(c)
			}

			if strings.HasPrefix(c.Path(), "/health") {
				return next(c)
			}

			provided := c.Request().Header.Get(HeaderAPIKey)
			if provided == "" {
				provided = c.QueryParam("api_key")
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				logger.WithContext(c.Request().Context()).Warn("request has a missing or invalid api key")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
			}

			return next(c)
		}
	}
}
