package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// CronSecretHeader is the alternative header for schedulers that cannot set Authorization
const CronSecretHeader = "X-Cron-Secret"

// CronSecretAuth returns an Echo middleware that admits only callers presenting the
// shared secret, either as a Bearer token or in X-Cron-Secret. An empty configured
// secret rejects every request.
func CronSecretAuth(secret string) echo.MiddlewareFunc {
	expected := []byte(secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(expected) == 0 {
				log.Error().Msg("Cron secret is not configured, rejecting trigger")
				return unauthorizedError(c, "Trigger is not configured")
			}

			presented, ok := presentedSecret(c)
			if !ok {
				return unauthorizedError(c, "Missing cron secret")
			}

			if subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				log.Warn().
					Str("remote_ip", c.RealIP()).
					Str("path", c.Request().URL.Path).
					Msg("Invalid cron secret")
				return unauthorizedError(c, "Invalid cron secret")
			}

			return next(c)
		}
	}
}

// presentedSecret reads the secret from Authorization: Bearer, then X-Cron-Secret
func presentedSecret(c echo.Context) (string, bool) {
	if authHeader := c.Request().Header.Get(echo.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], true
		}
	}
	if header := c.Request().Header.Get(CronSecretHeader); header != "" {
		return header, true
	}
	return "", false
}
