// Package config provides configuration loading and validation for the application.
package config

import (
	"encoding"
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration constants.
const (
	DefaultHost            = "0.0.0.0"
	DefaultAPIPort         = 3500
	DefaultWebPort         = 3501
	DefaultAdminPort       = 3502
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultDatabaseMaxOpenConns = 5
	DefaultDatabaseMaxIdleConns = 2
	DefaultProbeTimeout         = 3 * time.Second

	DefaultRedisConnectTimeout = 3 * time.Second
	DefaultRedisMaxRetries     = 1
	MaxRedisRetries            = 1

	DefaultMongoDBTimeout     = 3 * time.Second
	DefaultMongoDBMaxPoolSize = 5

	DefaultNATSConnectTimeout = 3 * time.Second

	DefaultHealthTimeout       = 5 * time.Second
	DefaultMemoryHeapThreshold = ByteSize(150 * 1024 * 1024)
)

// Environment names the deployment environment reported by the system view.
type Environment string

// Supported environments.
const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// Config holds the complete application configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Ports     PortsConfig     `yaml:"ports"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	MongoDB   MongoDBConfig   `yaml:"mongodb"`
	NATS      NATSConfig      `yaml:"nats"`
	Health    HealthConfig    `yaml:"health"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment Environment `yaml:"environment" env:"APP_ENV"`

	// Name is the application name used in logs, traces and metrics.
	Name    string `yaml:"name" env:"APP_NAME"`
	Version string `yaml:"version" env:"APP_VERSION"`
}

// ServerConfig holds HTTP server configuration. Port is the API port.
//
//nolint:golines // Struct tags require longer lines for readability
type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            int           `yaml:"port" env:"API_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`

	// CORSAllowOrigins lists the browser origins allowed to read the API.
	// "*" allows any origin. The environment form is comma separated.
	CORSAllowOrigins []string `yaml:"cors_allow_origins" env:"CORS_ALLOW_ORIGINS"`
}

// Address returns the full server address (host:port).
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PortsConfig holds the sibling surface ports reported by the system view.
type PortsConfig struct {
	Web   int `yaml:"web" env:"WEB_PORT"`
	Admin int `yaml:"admin" env:"ADMIN_PORT"`
}

// DatabaseConfig holds the relational store configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type DatabaseConfig struct {
	URL          string        `yaml:"url" env:"CONTROL_DATABASE_URL"`
	MaxOpenConns int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" env:"DATABASE_PROBE_TIMEOUT"`
}

// RedisConfig holds cache connection configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type RedisConfig struct {
	URL            string        `yaml:"url" env:"REDIS_URL"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"REDIS_CONNECT_TIMEOUT"`
	MaxRetries     int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout" env:"REDIS_PROBE_TIMEOUT"`
}

// MongoDBConfig holds the optional document store configuration.
// An empty URI disables the probe.
//
//nolint:golines // Struct tags require longer lines for readability
type MongoDBConfig struct {
	URI         string        `yaml:"uri" env:"MONGODB_URI"`
	Timeout     time.Duration `yaml:"timeout" env:"MONGODB_TIMEOUT"`
	MaxPoolSize uint64        `yaml:"max_pool_size" env:"MONGODB_MAX_POOL_SIZE"`
	Required    bool          `yaml:"required" env:"MONGODB_REQUIRED"`
}

// Enabled reports whether a document store is configured.
func (c MongoDBConfig) Enabled() bool {
	return c.URI != ""
}

// NATSConfig holds the optional message broker configuration.
// An empty URL disables the probe.
//
//nolint:golines // Struct tags require longer lines for readability
type NATSConfig struct {
	URL            string        `yaml:"url" env:"NATS_URL"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"NATS_CONNECT_TIMEOUT"`
	Required       bool          `yaml:"required" env:"NATS_REQUIRED"`
}

// Enabled reports whether a broker is configured.
func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

// HealthConfig holds aggregation settings.
//
//nolint:golines // Struct tags require longer lines for readability
type HealthConfig struct {
	Timeout             time.Duration `yaml:"timeout" env:"HEALTH_TIMEOUT"`
	MemoryHeapThreshold ByteSize      `yaml:"memory_heap_threshold" env:"HEALTH_MEMORY_HEAP_THRESHOLD"`
	MemoryRequired      bool          `yaml:"memory_required" env:"HEALTH_MEMORY_REQUIRED"`
}

// LogConfig holds logging configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug | info | warn | error
	Format string `yaml:"format" env:"LOG_FORMAT"` // json | text
}

// TelemetryConfig holds tracing and metrics configuration.
//
//nolint:golines // Struct tags require longer lines for readability
type TelemetryConfig struct {
	TracingExporter string  `yaml:"tracing_exporter" env:"OTEL_TRACES_EXPORTER"` // none | stdout | otlp
	SampleRatio     float64 `yaml:"sample_ratio" env:"OTEL_TRACES_SAMPLER_ARG"`
	MetricsEnabled  bool    `yaml:"metrics_enabled" env:"METRICS_ENABLED"`
}

// Configuration errors.
var (
	ErrConfigNotFound         = errors.New("configuration file not found")
	ErrConfigInvalid          = errors.New("invalid configuration")
	ErrMissingRequired        = errors.New("missing required configuration")
	ErrInvalidDuration        = errors.New("invalid duration format")
	ErrInvalidByteSize        = errors.New("invalid byte size")
	ErrInvalidURL             = errors.New("invalid url")
	ErrInvalidLogLevel        = errors.New("invalid log level: must be debug, info, warn, or error")
	ErrInvalidLogFormat       = errors.New("invalid log format: must be json or text")
	ErrInvalidEnvironment     = errors.New("invalid environment: must be development, production, or test")
	ErrInvalidTracingExporter = errors.New("invalid tracing exporter: must be none, stdout, or otlp")
)

var (
	databaseSchemes = []string{"postgres", "postgresql", "sqlite", "sqlite3", "file"}
	redisSchemes    = []string{"redis", "rediss"}
	mongoSchemes    = []string{"mongodb", "mongodb+srv"}
	natsSchemes     = []string{"nats", "tls"}
	originSchemes   = []string{"http", "https"}
)

// DefaultConfig returns a Config with sensible default values.
// The database and cache URLs have no default and must be provided.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Environment: EnvDevelopment,
			Name:        "sentinel-api",
			Version:     "0.0.0",
		},
		Server: ServerConfig{
			Host:             DefaultHost,
			Port:             DefaultAPIPort,
			ReadTimeout:      DefaultReadTimeout,
			WriteTimeout:     DefaultWriteTimeout,
			ShutdownTimeout:  DefaultShutdownTimeout,
			CORSAllowOrigins: []string{"*"},
		},
		Ports: PortsConfig{
			Web:   DefaultWebPort,
			Admin: DefaultAdminPort,
		},
		Database: DatabaseConfig{
			MaxOpenConns: DefaultDatabaseMaxOpenConns,
			MaxIdleConns: DefaultDatabaseMaxIdleConns,
			ProbeTimeout: DefaultProbeTimeout,
		},
		Redis: RedisConfig{
			ConnectTimeout: DefaultRedisConnectTimeout,
			MaxRetries:     DefaultRedisMaxRetries,
			ProbeTimeout:   DefaultProbeTimeout,
		},
		MongoDB: MongoDBConfig{
			Timeout:     DefaultMongoDBTimeout,
			MaxPoolSize: DefaultMongoDBMaxPoolSize,
		},
		NATS: NATSConfig{
			ConnectTimeout: DefaultNATSConnectTimeout,
		},
		Health: HealthConfig{
			Timeout:             DefaultHealthTimeout,
			MemoryHeapThreshold: DefaultMemoryHeapThreshold,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			TracingExporter: "none",
			SampleRatio:     1.0,
			MetricsEnabled:  true,
		},
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []error

	errs = c.validateApp(errs)
	errs = c.validateServer(errs)
	errs = c.validateDatasources(errs)
	errs = c.validateHealth(errs)
	errs = c.validateLog(errs)
	errs = c.validateTelemetry(errs)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(errs...))
	}

	return nil
}

// validateApp validates application configuration.
func (c *Config) validateApp(errs []error) []error {
	switch c.App.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidEnvironment, c.App.Environment))
	}
	if c.App.Name == "" {
		errs = append(errs, fmt.Errorf("%w: app.name", ErrMissingRequired))
	}
	return errs
}

// validateServer validates server and port configuration.
func (c *Config) validateServer(errs []error) []error {
	for name, port := range map[string]int{
		"server.port": c.Server.Port,
		"ports.web":   c.Ports.Web,
		"ports.admin": c.Ports.Admin,
	} {
		if port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s must be between 1 and 65535, got %d", name, port))
		}
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, errors.New("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}
	for _, origin := range c.Server.CORSAllowOrigins {
		if origin == "*" {
			continue
		}
		if err := validateURL("server.cors_allow_origins", origin, originSchemes, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// validateDatasources validates the probed dependency endpoints.
func (c *Config) validateDatasources(errs []error) []error {
	if err := validateURL("database.url", c.Database.URL, databaseSchemes, true); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("redis.url", c.Redis.URL, redisSchemes, true); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("mongodb.uri", c.MongoDB.URI, mongoSchemes, false); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("nats.url", c.NATS.URL, natsSchemes, false); err != nil {
		errs = append(errs, err)
	}
	if c.Redis.MaxRetries < 0 || c.Redis.MaxRetries > MaxRedisRetries {
		errs = append(errs, fmt.Errorf("redis.max_retries must be between 0 and %d, got %d",
			MaxRedisRetries, c.Redis.MaxRetries))
	}
	if c.MongoDB.Required && !c.MongoDB.Enabled() {
		errs = append(errs, fmt.Errorf("%w: mongodb.uri (mongodb.required is set)", ErrMissingRequired))
	}
	if c.NATS.Required && !c.NATS.Enabled() {
		errs = append(errs, fmt.Errorf("%w: nats.url (nats.required is set)", ErrMissingRequired))
	}
	return errs
}

func validateURL(field, raw string, schemes []string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%w: %s", ErrMissingRequired, field)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s could not be parsed", ErrInvalidURL, field)
	}
	if !slices.Contains(schemes, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("%w: %s scheme must be one of %s, got %q",
			ErrInvalidURL, field, strings.Join(schemes, ", "), u.Scheme)
	}
	return nil
}

// validateHealth validates aggregation configuration.
func (c *Config) validateHealth(errs []error) []error {
	if c.Health.Timeout <= 0 {
		errs = append(errs, errors.New("health.timeout must be positive"))
	}
	if c.Health.MemoryHeapThreshold == 0 {
		errs = append(errs, errors.New("health.memory_heap_threshold must be positive"))
	}
	return errs
}

// validateLog validates logging configuration.
func (c *Config) validateLog(errs []error) []error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ErrInvalidLogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, ErrInvalidLogFormat)
	}
	return errs
}

// validateTelemetry validates tracing configuration.
func (c *Config) validateTelemetry(errs []error) []error {
	validExporters := map[string]bool{"": true, "none": true, "stdout": true, "otlp": true}
	if !validExporters[strings.ToLower(c.Telemetry.TracingExporter)] {
		errs = append(errs, ErrInvalidTracingExporter)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio must be between 0.0 and 1.0, got %g",
			c.Telemetry.SampleRatio))
	}
	return errs
}

// Load loads configuration from the default config file and environment variables.
func Load() (*Config, error) {
	return LoadFromPath("")
}

// LoadFromPath loads configuration from a specific file path.
// If path is empty, it tries to find the config file in standard locations.
func LoadFromPath(path string) (*Config, error) {
	loader := NewLoader()
	return loader.Load(path)
}

// Loader handles configuration loading from files and environment variables.
type Loader struct {
	configPaths []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		configPaths: []string{
			"configs/config.yaml",
			"config.yaml",
			"/etc/sentinel/config.yaml",
		},
	}
}

// WithConfigPaths sets custom config paths to search.
func (l *Loader) WithConfigPaths(paths []string) *Loader {
	l.configPaths = paths
	return l
}

// Load loads configuration from file and environment variables.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := path
	if configPath == "" {
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			configPath = envPath
		} else {
			for _, p := range l.configPaths {
				if _, err := os.Stat(p); err == nil {
					configPath = p
					break
				}
			}
		}
	}

	if configPath != "" {
		if err := l.loadFromFile(cfg, configPath); err != nil {
			// Only an explicitly requested file is fatal.
			if path != "" || os.Getenv("CONFIG_PATH") != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (l *Loader) loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
		return fmt.Errorf("failed to parse config file: %w", unmarshalErr)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.loadEnvToStruct(reflect.ValueOf(cfg).Elem())
}

// loadEnvToStruct recursively loads environment variables into a struct.
func (l *Loader) loadEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := range v.NumField() {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.loadEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := l.setFieldFromEnv(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// setFieldFromEnv sets a struct field value from an environment variable string.
//
//nolint:exhaustive // We only support a subset of reflect.Kind for config values
func (l *Loader) setFieldFromEnv(field reflect.Value, value string) error {
	if field.CanAddr() && field.Addr().Type().Implements(textUnmarshalerType) {
		u, _ := field.Addr().Interface().(encoding.TextUnmarshaler)
		return u.UnmarshalText([]byte(value))
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeFor[time.Duration]() {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrInvalidDuration, value)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %s", value)
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value: %s", value)
		}
		field.SetUint(u)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", value)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type())
		}
		var items []string
		for item := range strings.SplitSeq(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value: %s", value)
		}
		field.SetFloat(f)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// IsDevelopment returns true for the development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true for the production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}
