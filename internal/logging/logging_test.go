package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestOpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inboxsweep.log")
	require.NoError(t, os.WriteFile(path, []byte("earlier run\n"), 0o600))

	var stdout bytes.Buffer
	logger, closeFn, err := Open(&stdout, path, false)
	require.NoError(t, err)
	logger.Info("deleted message", "uid", 42)
	logger.Debug("hidden")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "earlier run\n")
	assert.Contains(t, string(data), `msg="deleted message" uid=42`)
	assert.Contains(t, string(data), "time=")
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, stdout.String(), "deleted message")
}

func TestOpenVerbose(t *testing.T) {
	var stdout bytes.Buffer
	logger, closeFn, err := Open(&stdout, "", true)
	require.NoError(t, err)
	logger.Debug("state change", "to", "connected")
	require.NoError(t, closeFn())
	assert.Contains(t, stdout.String(), "level=DEBUG")
}

func TestWithOTelKeepsTextOutput(t *testing.T) {
	var stdout bytes.Buffer
	exporter := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	logger := WithOTel(New(&stdout, false), "test", provider)
	logger.With("criterion", "news@example.com").Info("deleted message", "uid", 7)
	logger.Debug("hidden")

	assert.Contains(t, stdout.String(), `msg="deleted message" criterion=news@example.com uid=7`)
	assert.NotContains(t, stdout.String(), "hidden")
	require.Len(t, exporter.records, 1)
	assert.Equal(t, "deleted message", exporter.records[0].Body().AsString())
}

type recordingExporter struct {
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.records = append(e.records, records...)
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }
