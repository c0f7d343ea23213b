package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/settlement/internal/config"
)

func restoreGlobal(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestSetupDisabledInstallsNothing(t *testing.T) {
	restoreGlobal(t)
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), config.TracingConfig{Endpoint: "http://localhost:4318"}, "settlement", "test", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())

	shutdown, err = Setup(context.Background(), config.TracingConfig{Enabled: true}, "settlement", "test", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestSetupInstallsSDKProvider(t *testing.T) {
	restoreGlobal(t)

	cfg := config.TracingConfig{Enabled: true, Endpoint: "http://localhost:4318", SampleRatio: 0.5}
	shutdown, err := Setup(context.Background(), cfg, "settlement", "test", zaptest.NewLogger(t))
	require.NoError(t, err)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, shutdown(ctx))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
