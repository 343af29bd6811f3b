package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UsernameKey  ContextKey = "username"
	// BatchIDKey tags every line emitted while one import batch runs
	BatchIDKey ContextKey = "batch_id"
)

// contextAttrs lists the context values copied onto every log line, in output order.
var contextAttrs = []ContextKey{RequestIDKey, UsernameKey, BatchIDKey}

// Config holds logger configuration
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // json, text
	AddSource bool
	Output    io.Writer // defaults to stdout
}

// ParseLevel maps a config level name onto slog; unknown names mean info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// New builds a logger without installing it as the default.
func New(cfg *Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// Init installs the configured logger as the slog default
func Init(cfg *Config) {
	slog.SetDefault(New(cfg))
}

// WithContext returns the default logger enriched with request, operator and batch ids.
func WithContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	for _, key := range contextAttrs {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			l = l.With(string(key), v)
		}
	}
	return l
}

// WithBatch returns a context whose log lines carry the given batch id
func WithBatch(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchIDKey, batchID)
}

// BatchID reports the batch id stored by WithBatch, if any.
func BatchID(ctx context.Context) string {
	id, _ := ctx.Value(BatchIDKey).(string)
	return id
}

func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}
