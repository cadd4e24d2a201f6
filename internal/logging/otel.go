package logging

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

// WithOTel returns a logger that also emits every record to provider, or
// to the global OpenTelemetry logger provider when provider is nil.
func WithOTel(logger *slog.Logger, name string, provider log.LoggerProvider) *slog.Logger {
	if provider == nil {
		provider = global.GetLoggerProvider()
	}
	return slog.New(fanout{logger.Handler(), otelslog.NewHandler(name, otelslog.WithLoggerProvider(provider))})
}

// fanout sends records to every handler. The first handler decides which
// levels are recorded at all.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return len(f) > 0 && f[0].Enabled(ctx, level)
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var err error
	for _, h := range f {
		if h.Enabled(ctx, record.Level) {
			err = errors.Join(err, h.Handle(ctx, record.Clone()))
		}
	}
	return err
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make(fanout, 0, len(f))
	for _, h := range f {
		handlers = append(handlers, h.WithAttrs(attrs))
	}
	return handlers
}

func (f fanout) WithGroup(name string) slog.Handler {
	handlers := make(fanout, 0, len(f))
	for _, h := range f {
		handlers = append(handlers, h.WithGroup(name))
	}
	return handlers
}
