// Package main provides the health API entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lllypuk/sentinel/internal/config"
	"github.com/lllypuk/sentinel/internal/correlation"
	"github.com/lllypuk/sentinel/internal/infrastructure/httpserver"
)

// Exit codes of the check command.
const (
	exitPass   = 0
	exitFail   = 1
	exitConfig = 2
)

// exitError carries a process exit code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitPass
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "error:", ee.err)
		}
		return ee.code
	}

	fmt.Fprintln(stderr, "error:", err)
	return exitFail
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "sentinel-api",
		Short:         "Dependency health and readiness API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath, stdout)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), configPath, stdout)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Evaluate liveness once and print the report",
			Long: "Evaluate liveness once, print the JSON report and exit with 0 on pass, " +
				"1 on fail and 2 on a configuration or startup error.",
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return check(cmd.Context(), configPath, stdout, stderr)
			},
		},
	)

	return root
}

// serve runs the HTTP server until SIGINT or SIGTERM.
func serve(ctx context.Context, configPath string, logOut io.Writer) error {
	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return &exitError{code: exitFail, err: fmt.Errorf("failed to load configuration: %w", err)}
	}

	logger := setupLogger(cfg, logOut)
	slog.SetDefault(logger)

	logger.Info("starting health API server",
		slog.String("version", cfg.App.Version),
		slog.String("environment", string(cfg.App.Environment)),
	)

	container, err := NewContainer(cfg, WithLogger(logger))
	if err != nil {
		logger.Error("failed to build container", slog.String("error", err.Error()))
		return &exitError{code: exitFail, err: err}
	}

	server := httpserver.NewServer(httpserver.ServerConfigFrom(cfg.Server), logger)
	SetupRoutes(container, server.Echo())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	var startErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case startErr = <-serverErr:
		if startErr != nil {
			logger.Error("server error", slog.String("error", startErr.Error()))
		}
	}

	if err := gracefulShutdown(server, container, logger); err != nil {
		startErr = errors.Join(startErr, err)
	}
	if startErr != nil {
		return &exitError{code: exitFail, err: startErr}
	}
	return nil
}

// gracefulShutdown stops accepting connections, then releases the container.
func gracefulShutdown(server *httpserver.Server, container *Container, logger *slog.Logger) error {
	logger.Info("shutting down server...")

	var errs []error

	// Server.Shutdown bounds itself with the configured shutdown timeout.
	if err := server.Shutdown(context.Background()); err != nil {
		errs = append(errs, err)
	}

	if err := container.Close(); err != nil {
		logger.Error("container close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	logger.Info("server shutdown complete")
	return errors.Join(errs...)
}

// check evaluates liveness once. The report goes to out and logs to logOut so
// the output stays machine-readable.
func check(ctx context.Context, configPath string, out, logOut io.Writer) error {
	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("failed to load configuration: %w", err)}
	}

	logger := setupLogger(cfg, logOut)

	container, err := NewContainer(cfg, WithLogger(logger), WithTraceWriter(logOut))
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	defer func() {
		_ = container.Close()
	}()

	report := container.Reporter.Liveness(correlation.WithID(ctx, correlation.NewID()))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("failed to write report: %w", err)}
	}

	if !report.Pass {
		return &exitError{code: exitFail}
	}
	return nil
}

// setupLogger creates the structured logger based on configuration. Records
// logged with a request context carry its correlation identifier.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var handler slog.Handler

	level := parseLogLevel(cfg.Log.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.IsDevelopment(),
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default: // "json" or any other value defaults to JSON
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(correlation.NewLogHandler(handler))
}

// parseLogLevel converts a string log level to slog.Level, ignoring case.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
