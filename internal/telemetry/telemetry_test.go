package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	t.Setenv(EnvEndpoint, "")
	t.Setenv(envTracesEndpoint, "")
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background())
	require.NoError(t, err)
	assert.False(t, Enabled())
	assert.Equal(t, before, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupWithEndpointInstallsProviders(t *testing.T) {
	t.Setenv(EnvEndpoint, "http://127.0.0.1:4318")
	tracerProvider := otel.GetTracerProvider()
	meterProvider := otel.GetMeterProvider()
	loggerProvider := global.GetLoggerProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tracerProvider)
		otel.SetMeterProvider(meterProvider)
		global.SetLoggerProvider(loggerProvider)
	})

	shutdown, err := Setup(context.Background())
	require.NoError(t, err)
	assert.True(t, Enabled())

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok, "tracer provider")
	_, ok = otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, ok, "meter provider")
	_, ok = global.GetLoggerProvider().(*sdklog.LoggerProvider)
	assert.True(t, ok, "logger provider")

	// No collector is listening; shutdown may report export errors but must
	// return within the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
	assert.NoError(t, shutdown(context.Background()), "second shutdown is a no-op")
}
