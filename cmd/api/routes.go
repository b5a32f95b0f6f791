package main

import (
	"github.com/labstack/echo/v4"

	"github.com/lllypuk/sentinel/internal/infrastructure/httpserver"
	"github.com/lllypuk/sentinel/internal/middleware"
)

// SetupRoutes configures the middleware chain and the health surface on e.
func SetupRoutes(c *Container, e *echo.Echo) *httpserver.Router {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.Logger = c.Logger

	recoveryConfig := middleware.DefaultRecoveryConfig()
	recoveryConfig.Logger = c.Logger
	// Stack traces are noise outside development.
	recoveryConfig.DisablePrintStack = !c.Config.IsDevelopment()

	router := httpserver.NewRouter(e, httpserver.RouterConfig{
		Logger:         c.Logger,
		CORSConfig:     middleware.NewCORSConfig(c.Config.Server.CORSAllowOrigins),
		LoggingConfig:  loggingConfig,
		RecoveryConfig: recoveryConfig,
		APIPrefix:      httpserver.DefaultAPIPrefix,
	})

	router.RegisterHealthEndpoints(c.Reporter)

	if c.Registry != nil {
		router.RegisterMetricsEndpoint(c.Registry)
	}

	if c.Config.IsDevelopment() {
		router.PrintRoutes()
	}

	return router
}
