package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/lllypuk/sentinel/internal/config"
	"github.com/lllypuk/sentinel/internal/health"
	"github.com/lllypuk/sentinel/internal/infrastructure/database"
	"github.com/lllypuk/sentinel/internal/infrastructure/metrics"
	mongodbinfra "github.com/lllypuk/sentinel/internal/infrastructure/mongodb"
	"github.com/lllypuk/sentinel/internal/infrastructure/telemetry"
)

// Container initialization timeouts.
const (
	containerInitTimeout   = 30 * time.Second
	mongoDisconnectTimeout = 10 * time.Second
	telemetryFlushTimeout  = 5 * time.Second
)

// System view keys.
const (
	serviceDatabase = "database"
	serviceCache    = "cache"
	serviceMongoDB  = "mongodb"
	serviceBroker   = "nats"
)

// Container holds the process dependencies and manages their lifecycle.
type Container struct {
	// Configuration
	Config *config.Config
	Logger *slog.Logger

	// Observability
	Telemetry *telemetry.Provider
	Registry  *prometheus.Registry
	Metrics   *metrics.HealthMetrics

	// Infrastructure
	DB      *sql.DB
	MongoDB *mongo.Client

	// Indicators
	Database      *health.DatabaseIndicator
	Cache         *health.CacheIndicator
	Memory        *health.MemoryIndicator
	DocumentStore *health.DocumentStoreIndicator
	Broker        *health.BrokerIndicator

	// Health
	Aggregator *health.Aggregator
	Reporter   *health.Reporter

	traceWriter io.Writer
	startedAt   time.Time

	closeOnce sync.Once
	closeErr  error
}

// ContainerOption configures the Container.
type ContainerOption func(*Container)

// WithLogger sets a custom logger for the container.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		c.Logger = logger
	}
}

// WithTraceWriter redirects spans of the stdout exporter.
func WithTraceWriter(w io.Writer) ContainerOption {
	return func(c *Container) {
		c.traceWriter = w
	}
}

// WithStartedAt overrides the process start time used for uptime.
func WithStartedAt(t time.Time) ContainerOption {
	return func(c *Container) {
		c.startedAt = t
	}
}

// NewContainer creates a new dependency injection container.
// No dependency is contacted here: pools and clients connect on first probe,
// so a down dependency shows up in the health report instead of failing startup.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config:    cfg,
		Logger:    slog.Default(),
		startedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.setupInfrastructure(); err != nil {
		// Clean up any partially initialized resources
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup infrastructure: %w", err)
	}

	if err := c.setupIndicators(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup indicators: %w", err)
	}

	c.setupHealth()

	if err := c.validateWiring(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("wiring validation failed: %w", err)
	}

	return c, nil
}

func (c *Container) setupInfrastructure() error {
	ctx, cancel := context.WithTimeout(context.Background(), containerInitTimeout)
	defer cancel()

	if err := c.setupTelemetry(ctx); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	c.setupMetrics()

	if err := c.setupDatabase(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := c.setupMongoDB(); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}

	return nil
}

func (c *Container) setupTelemetry(ctx context.Context) error {
	provider, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: c.Config.App.Name,
		Version:     c.Config.App.Version,
		Environment: string(c.Config.App.Environment),
		Exporter:    c.Config.Telemetry.TracingExporter,
		SampleRatio: c.Config.Telemetry.SampleRatio,
		Writer:      c.traceWriter,
	})
	if err != nil {
		return err
	}

	c.Telemetry = provider
	c.Logger.Debug("telemetry configured",
		slog.String("exporter", c.Config.Telemetry.TracingExporter),
		slog.Bool("enabled", provider.Enabled()),
	)
	return nil
}

func (c *Container) setupMetrics() {
	if !c.Config.Telemetry.MetricsEnabled {
		return
	}

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.NewHealthMetrics(c.Registry)
}

func (c *Container) setupDatabase() error {
	db, err := database.Open(database.Config{
		URL:          c.Config.Database.URL,
		MaxOpenConns: c.Config.Database.MaxOpenConns,
		MaxIdleConns: c.Config.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}

	c.DB = db
	c.Logger.Debug("database pool created", slog.String("url", database.Redact(c.Config.Database.URL)))
	return nil
}

func (c *Container) setupMongoDB() error {
	if !c.Config.MongoDB.Enabled() {
		return nil
	}

	client, err := mongodbinfra.NewClient(mongodbinfra.Config{
		URI:         c.Config.MongoDB.URI,
		MaxPoolSize: c.Config.MongoDB.MaxPoolSize,
		Timeout:     c.Config.MongoDB.Timeout,
	})
	if err != nil {
		return err
	}

	c.MongoDB = client
	c.Logger.Debug("mongodb client created")
	return nil
}

func (c *Container) setupIndicators() error {
	c.Database = health.NewDatabaseIndicator(c.DB)

	cache, err := health.NewCacheIndicator(health.CacheConfig{
		URL:            c.Config.Redis.URL,
		ConnectTimeout: c.Config.Redis.ConnectTimeout,
		MaxRetries:     cacheRetries(c.Config.Redis.MaxRetries),
	})
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	c.Cache = cache

	c.Memory = health.NewMemoryIndicator(c.Config.Health.MemoryHeapThreshold.Bytes())

	if c.MongoDB != nil {
		c.DocumentStore = health.NewDocumentStoreIndicator(c.MongoDB)
	}

	if c.Config.NATS.Enabled() {
		c.Broker = health.NewBrokerIndicator(health.BrokerConfig{
			URL:            c.Config.NATS.URL,
			ConnectTimeout: c.Config.NATS.ConnectTimeout,
		})
	}

	return nil
}

func (c *Container) setupHealth() {
	opts := []health.AggregatorOption{
		health.WithDefaultTimeout(c.Config.Health.Timeout),
		health.WithLogger(c.Logger),
		health.WithTracer(c.Telemetry.Tracer()),
	}
	if c.Metrics != nil {
		opts = append(opts, health.WithObserver(c.Metrics))
	}
	c.Aggregator = health.NewAggregator(opts...)

	c.Reporter = health.NewReporter(c.Aggregator, health.ReporterConfig{
		Environment: string(c.Config.App.Environment),
		Version:     c.Config.App.Version,
		Ports: health.Ports{
			API:   c.Config.Server.Port,
			Web:   c.Config.Ports.Web,
			Admin: c.Config.Ports.Admin,
		},
		StartedAt:    c.startedAt,
		Liveness:     c.livenessRegistrations(),
		Dependencies: c.dependencies(),
	})
}

// livenessRegistrations returns the liveness policy. The database and the
// cache are always required; the rest follow their configured flags.
func (c *Container) livenessRegistrations() []health.Registration {
	regs := []health.Registration{
		health.Require(c.Database).WithTimeout(c.Config.Database.ProbeTimeout),
		health.Require(c.Cache).WithTimeout(c.Config.Redis.ProbeTimeout),
		registration(c.Memory, c.Config.Health.MemoryRequired),
	}

	if c.DocumentStore != nil {
		regs = append(regs, registration(c.DocumentStore, c.Config.MongoDB.Required).
			WithTimeout(c.Config.MongoDB.Timeout))
	}
	if c.Broker != nil {
		regs = append(regs, registration(c.Broker, c.Config.NATS.Required).
			WithTimeout(c.Config.NATS.ConnectTimeout))
	}

	return regs
}

func (c *Container) dependencies() []health.Dependency {
	deps := []health.Dependency{
		{Key: serviceDatabase, Indicator: c.Database, Timeout: c.Config.Database.ProbeTimeout},
		{Key: serviceCache, Indicator: c.Cache, Timeout: c.Config.Redis.ProbeTimeout},
	}

	if c.DocumentStore != nil {
		deps = append(deps, health.Dependency{
			Key:       serviceMongoDB,
			Indicator: c.DocumentStore,
			Timeout:   c.Config.MongoDB.Timeout,
		})
	}
	if c.Broker != nil {
		deps = append(deps, health.Dependency{
			Key:       serviceBroker,
			Indicator: c.Broker,
			Timeout:   c.Config.NATS.ConnectTimeout,
		})
	}

	return deps
}

// cacheRetries maps the configured retry count onto the indicator, where zero
// selects the default.
func cacheRetries(n int) int {
	if n == 0 {
		return health.CacheNoRetries
	}
	return n
}

func registration(ind health.Indicator, required bool) health.Registration {
	if required {
		return health.Require(ind)
	}
	return health.Optional(ind)
}

// validateWiring checks that all required components are initialized.
func (c *Container) validateWiring() error {
	var errs []error

	if c.Telemetry == nil {
		errs = append(errs, errors.New("telemetry provider not initialized"))
	}
	if c.DB == nil {
		errs = append(errs, errors.New("database pool not initialized"))
	}
	if c.Cache == nil {
		errs = append(errs, errors.New("cache indicator not initialized"))
	}
	if c.Reporter == nil {
		errs = append(errs, errors.New("health reporter not initialized"))
	}
	if c.Config.Telemetry.MetricsEnabled && c.Metrics == nil {
		errs = append(errs, errors.New("metrics enabled but not initialized"))
	}

	return errors.Join(errs...)
}

// Close releases resources in reverse order of creation. It is safe to call
// more than once; later calls return the first result.
func (c *Container) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.close()
	})
	return c.closeErr
}

func (c *Container) close() error {
	c.Logger.Info("closing container resources...")

	var errs []error

	if c.Broker != nil {
		if err := c.Broker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("broker close: %w", err))
		} else {
			c.Logger.Debug("broker connection closed")
		}
	}

	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		} else {
			c.Logger.Debug("redis connection closed")
		}
	}

	if c.MongoDB != nil {
		if err := mongodbinfra.Disconnect(c.MongoDB, mongoDisconnectTimeout); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect: %w", err))
		} else {
			c.Logger.Debug("mongodb connection closed")
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		} else {
			c.Logger.Debug("database pool closed")
		}
	}

	if c.Telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()

		if err := c.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.Logger.Info("all container resources closed")
	return nil
}
