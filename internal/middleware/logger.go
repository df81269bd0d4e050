package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
)

type contextKey string

const loggerKey = contextKey("logger")

// Logger injects a request-scoped logger into the request context and logs
// each finished request. The logger carries the request ID, so Logger must
// run after echo's RequestID middleware.
func Logger(base *slog.Logger) echo.MiddlewareFunc {
	if base == nil {
		base = slog.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			requestLogger := base.With("request_id", reqID)

			newCtx := context.WithValue(c.Request().Context(), loggerKey, requestLogger)
			c.SetRequest(c.Request().WithContext(newCtx))

			err := next(c)
			if err != nil {
				// Let echo's error handler write the response before the
				// status is read.
				c.Error(err)
			}

			requestLogger.Info("Request handled",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"duration", time.Since(start),
			)
			return nil
		}
	}
}

// FromContext returns the request-scoped logger, or the default logger
// outside a request.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
