package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lllypuk/sentinel/internal/domain/errs"
)

// LoggingConfig holds configuration for the logging middleware.
type LoggingConfig struct {
	Logger *slog.Logger

	// Skipper excludes requests from the log. Nil logs every request.
	Skipper middleware.Skipper
}

// DefaultLoggingConfig skips liveness polling, which is frequent enough to
// drown the log.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Logger:  slog.Default(),
		Skipper: SkipPaths("/api/health"),
	}
}

// SkipPaths returns a Skipper matching exact request paths.
func SkipPaths(paths ...string) middleware.Skipper {
	skip := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		skip[p] = struct{}{}
	}
	return func(c echo.Context) bool {
		_, ok := skip[c.Request().URL.Path]
		return ok
	}
}

// Logging returns a middleware that writes one record per request.
//
// Records are written with the request context, so a logger built on
// correlation.LogHandler tags them with the identifier set by CorrelationID.
// Returned errors have not been rendered yet, so their status is derived the
// same way the error handler will derive it.
func Logging(config LoggingConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Skipper == nil {
		config.Skipper = middleware.DefaultSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			req := c.Request()
			res := c.Response()
			status := responseStatus(res, err)

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", status),
				slog.Duration("latency", time.Since(start)),
				slog.String("remote_ip", c.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("response_size", res.Size),
			}
			if route := c.Path(); route != "" && route != req.URL.Path {
				attrs = append(attrs, slog.String("route", route))
			}
			if query := req.URL.RawQuery; query != "" {
				attrs = append(attrs, slog.String("query", query))
			}

			level := levelFor(status)
			if err != nil && level > slog.LevelInfo {
				attrs = append(attrs, slog.String("error", err.Error()))
			}

			config.Logger.LogAttrs(req.Context(), level, "HTTP request", attrs...)
			return err
		}
	}
}

func responseStatus(res *echo.Response, err error) int {
	if err == nil || res.Committed {
		return res.Status
	}
	if appErr, ok := errs.As(err); ok {
		return appErr.StatusCode
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
