// Package telemetry bootstraps OpenTelemetry tracing for the service.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Supported exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config configures the tracer provider.
type Config struct {
	ServiceName string
	Version     string
	Environment string
	Exporter    string  // none|stdout|otlp
	SampleRatio float64 // 0.0-1.0

	// Writer receives stdout spans. Defaults to os.Stdout.
	Writer io.Writer
}

// Provider owns the process tracer provider.
type Provider struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider

	once        sync.Once
	shutdownErr error
}

// Setup builds a tracer provider and installs it as the global one.
// With the none exporter a no-op tracer is returned and nothing is installed.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return &Provider{tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName)}, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.SampleRatio))),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return &Provider{
		tracer:   tp.Tracer(cfg.ServiceName),
		provider: tp,
	}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterOTLP:
		// Endpoint and headers come from the standard OTEL_EXPORTER_OTLP_* variables.
		return otlptracegrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unknown exporter: %q", cfg.Exporter)
	}
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1.0:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(ratio)
	}
}

// Tracer returns the configured tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.provider != nil
}

// Shutdown flushes pending spans. Only the first call does any work.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		if p.provider == nil {
			return
		}
		if err := p.provider.Shutdown(ctx); err != nil {
			p.shutdownErr = fmt.Errorf("tracer shutdown: %w", err)
		}
	})
	return p.shutdownErr
}
