package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/lllypuk/sentinel/internal/correlation"
)

// CorrelationIDKey is the echo context key for the correlation identifier.
const CorrelationIDKey = "correlation_id"

// CorrelationID returns a middleware that reuses the inbound X-Correlation-ID header
// or generates a new identifier, stores it in the request context and echoes it on
// the response. It must be the first middleware in the chain.
func CorrelationID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			id := req.Header.Get(correlation.Header)
			if id == "" {
				id = correlation.NewID()
			}

			c.SetRequest(req.WithContext(correlation.WithID(req.Context(), id)))
			c.Set(CorrelationIDKey, id)
			c.Response().Header().Set(correlation.Header, id)

			return next(c)
		}
	}
}

// GetCorrelationID retrieves the correlation identifier from the echo context.
func GetCorrelationID(c echo.Context) string {
	if id, ok := c.Get(CorrelationIDKey).(string); ok {
		return id
	}
	return correlation.FromContext(c.Request().Context())
}
