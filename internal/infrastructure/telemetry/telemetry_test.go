package telemetry_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/sentinel/internal/infrastructure/telemetry"
)

func TestSetup_None(t *testing.T) {
	for _, exporter := range []string{"", telemetry.ExporterNone} {
		p, err := telemetry.Setup(context.Background(), telemetry.Config{
			ServiceName: "sentinel-api",
			Exporter:    exporter,
		})
		require.NoError(t, err)

		assert.False(t, p.Enabled())
		assert.NotNil(t, p.Tracer())
		require.NoError(t, p.Shutdown(context.Background()))
	}
}

func TestSetup_Stdout(t *testing.T) {
	var buf bytes.Buffer

	p, err := telemetry.Setup(context.Background(), telemetry.Config{
		ServiceName: "sentinel-api",
		Version:     "1.0.0",
		Environment: "test",
		Exporter:    telemetry.ExporterStdout,
		SampleRatio: 1,
		Writer:      &buf,
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "health.check.database")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "health.check.database")
	assert.Contains(t, buf.String(), "sentinel-api")

	// Second shutdown is a no-op.
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSetup_NeverSample(t *testing.T) {
	var buf bytes.Buffer

	p, err := telemetry.Setup(context.Background(), telemetry.Config{
		ServiceName: "sentinel-api",
		Exporter:    telemetry.ExporterStdout,
		SampleRatio: 0,
		Writer:      &buf,
	})
	require.NoError(t, err)

	_, span := p.Tracer().Start(context.Background(), "dropped")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.NotContains(t, buf.String(), "dropped")
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := telemetry.Setup(context.Background(), telemetry.Config{
		ServiceName: "sentinel-api",
		Exporter:    "jaeger",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown exporter")
}
