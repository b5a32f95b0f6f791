package middleware

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lllypuk/sentinel/internal/correlation"
)

// AnyOrigin allows every origin.
const AnyOrigin = "*"

// DefaultCORSMaxAge is how long browsers may cache a preflight result.
const DefaultCORSMaxAge = 24 * time.Hour

// CORSConfig configures cross-origin reads of the health surface.
// Only safe methods are allowed and the correlation header is exposed.
type CORSConfig struct {
	// AllowOrigins lists the origins allowed to read responses. Empty or a
	// list containing AnyOrigin allows every origin.
	AllowOrigins []string

	MaxAge time.Duration
}

// DefaultCORSConfig allows any origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{AnyOrigin},
		MaxAge:       DefaultCORSMaxAge,
	}
}

// NewCORSConfig returns the defaults restricted to origins. Blank entries and
// duplicates are dropped and trailing slashes are trimmed.
func NewCORSConfig(origins []string) CORSConfig {
	cfg := DefaultCORSConfig()

	normalized := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" || slices.Contains(normalized, origin) {
			continue
		}
		normalized = append(normalized, origin)
	}
	if len(normalized) > 0 {
		cfg.AllowOrigins = normalized
	}
	return cfg
}

// AllowsAnyOrigin reports whether the configuration is a wildcard.
func (c CORSConfig) AllowsAnyOrigin() bool {
	return len(c.AllowOrigins) == 0 || slices.Contains(c.AllowOrigins, AnyOrigin)
}

// CORS returns the CORS middleware. Credentials are allowed only for an
// explicit origin list, since browsers reject them next to a wildcard.
func CORS(config CORSConfig) echo.MiddlewareFunc {
	origins := config.AllowOrigins
	if config.AllowsAnyOrigin() {
		origins = []string{AnyOrigin}
	}

	maxAge := config.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultCORSMaxAge
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderAccept,
			echo.HeaderContentType,
			correlation.Header,
		},
		ExposeHeaders:    []string{correlation.Header},
		AllowCredentials: !config.AllowsAnyOrigin(),
		MaxAge:           int(maxAge.Seconds()),
	})
}
