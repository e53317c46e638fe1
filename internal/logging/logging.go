// Package logging builds the process [log/slog] logger from the loaded
// configuration and carries it through contexts so that long-lived
// components (the folder registry, the regenerator) log with the same
// handler as the command that started them.
package logging

import (
	"context"
	"io"
	"log/slog"

	"github.com/hupe1980/barrelwatch/internal/config"
)

// New returns a logger writing cfg's format to w at cfg's effective level.
func New(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level(cfg)}

	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup is New followed by slog.SetDefault, so code without a context
// logger (debouncer callbacks) writes to the same place.
func Setup(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := New(cfg, w)
	slog.SetDefault(logger)

	return logger
}

// level maps the configured level name, forcing errors only when quiet.
// Unknown names fall back to info; Config.Validate rejects them earlier.
func level(cfg *config.Config) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cfg.EffectiveLogLevel())); err != nil {
		return slog.LevelInfo
	}

	return l
}

// Component returns logger tagged with the given component name.
// A nil logger falls back to slog.Default().
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}

	return logger.With(slog.String("component", name))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type ctxKey struct{}

// NewContext returns a child context carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}
