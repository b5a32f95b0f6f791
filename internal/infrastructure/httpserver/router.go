package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lllypuk/sentinel/internal/middleware"
)

// DefaultAPIPrefix is the global route prefix.
const DefaultAPIPrefix = "/api"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger *slog.Logger

	CORSConfig     middleware.CORSConfig
	LoggingConfig  middleware.LoggingConfig
	RecoveryConfig middleware.RecoveryConfig

	// APIPrefix is the prefix for all API routes.
	APIPrefix string
}

// DefaultRouterConfig returns a RouterConfig with sensible defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Logger:         slog.Default(),
		CORSConfig:     middleware.DefaultCORSConfig(),
		LoggingConfig:  middleware.DefaultLoggingConfig(),
		RecoveryConfig: middleware.DefaultRecoveryConfig(),
		APIPrefix:      DefaultAPIPrefix,
	}
}

// Router manages the global middleware chain and the API route group.
type Router struct {
	echo   *echo.Echo
	config RouterConfig
	logger *slog.Logger
	api    *echo.Group
}

// NewRouter creates a new router with the given configuration.
func NewRouter(e *echo.Echo, config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.APIPrefix == "" {
		config.APIPrefix = DefaultAPIPrefix
	}
	if config.LoggingConfig.Skipper == nil {
		config.LoggingConfig.Skipper = middleware.SkipPaths(config.APIPrefix + HealthPath)
	}

	r := &Router{
		echo:   e,
		config: config,
		logger: config.Logger,
	}

	e.HTTPErrorHandler = ErrorHandler(config.Logger)
	r.setupGlobalMiddleware()
	r.api = e.Group(config.APIPrefix)

	return r
}

// setupGlobalMiddleware applies global middleware to the Echo instance.
func (r *Router) setupGlobalMiddleware() {
	// Correlation first, so that recovery and request logs carry the identifier.
	r.echo.Use(middleware.CorrelationID())
	r.echo.Use(middleware.RecoveryWithConfig(r.config.RecoveryConfig))
	r.echo.Use(middleware.CORS(r.config.CORSConfig))
	r.echo.Use(middleware.Logging(r.config.LoggingConfig))
}

// Echo returns the underlying Echo instance.
func (r *Router) Echo() *echo.Echo {
	return r.echo
}

// API returns the route group under the API prefix.
func (r *Router) API() *echo.Group {
	return r.api
}

// RegisterHealthEndpoints registers the health surface under the API prefix.
func (r *Router) RegisterHealthEndpoints(reporter HealthReporter) {
	NewHealthEndpoints(reporter).Register(r.api)
}

// RegisterMetricsEndpoint registers the Prometheus metrics endpoint outside the API prefix.
func (r *Router) RegisterMetricsEndpoint(gatherer prometheus.Gatherer) {
	handler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(r.logger.Handler(), slog.LevelError),
	})
	r.echo.GET("/metrics", echo.WrapHandler(handler))
}

// PrintRoutes logs all registered routes (for debugging).
func (r *Router) PrintRoutes() {
	for _, route := range r.echo.Routes() {
		r.logger.Debug("registered route",
			slog.String("method", route.Method),
			slog.String("path", route.Path),
		)
	}
}
