package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
)

// DefaultStackSize is the default stack trace size (4KB).
const DefaultStackSize = 4 << 10

// ErrPanicRecovered wraps the value of a recovered handler panic.
var ErrPanicRecovered = errors.New("panic recovered")

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	Logger *slog.Logger

	// StackSize is the maximum size of the stack trace to capture.
	StackSize int

	// DisableStackAll limits the trace to the panicking goroutine.
	DisableStackAll bool

	DisablePrintStack bool
}

// DefaultRecoveryConfig returns a RecoveryConfig with sensible defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Logger:          slog.Default(),
		StackSize:       DefaultStackSize,
		DisableStackAll: true,
	}
}

// RecoveryWithConfig turns a handler panic into an error wrapping
// ErrPanicRecovered. The echo HTTPErrorHandler renders it like any other
// internal failure. http.ErrAbortHandler is re-raised so net/http can abort
// the connection.
func RecoveryWithConfig(config RecoveryConfig) echo.MiddlewareFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.StackSize <= 0 {
		config.StackSize = DefaultStackSize
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				//nolint:errorlint // r is a recovered value, not a wrapped error
				if r == http.ErrAbortHandler {
					panic(r)
				}

				err = panicError(r)
				config.logPanic(c, err)
			}()

			return next(c)
		}
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanicRecovered, err)
	}
	return fmt.Errorf("%w: %v", ErrPanicRecovered, r)
}

func (config RecoveryConfig) logPanic(c echo.Context, err error) {
	req := c.Request()
	attrs := []slog.Attr{
		slog.String("error", err.Error()),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.String("remote_ip", c.RealIP()),
	}

	if !config.DisablePrintStack {
		stack := make([]byte, config.StackSize)
		stack = stack[:runtime.Stack(stack, !config.DisableStackAll)]
		attrs = append(attrs, slog.String("stack", string(stack)))
	}

	config.Logger.LogAttrs(req.Context(), slog.LevelError, "panic recovered", attrs...)
}
