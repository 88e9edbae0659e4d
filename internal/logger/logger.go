// Package logger configures the application slog loggers.
//
// In dev environments logs are rendered with the tint handler (human-readable,
// colored). In staging/production a JSON handler is used so logs can be
// shipped to an aggregator.
//
// The package also provides helpers for request-scoped loggers: middleware
// stores a logger in the request context and handlers retrieve it with
// ContextRequestLogger so that every log line carries the request id.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLogLevel converts a config string into a slog.Level (defaults to info).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger creates the application logger and installs it as the slog
// default so stray slog calls use the same handler.
func InitLogger(level slog.Level, environment string) *slog.Logger {
	var handler slog.Handler

	switch environment {
	case "production", "staging":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}

	appLogger := slog.New(handler)
	slog.SetDefault(appLogger)
	return appLogger
}

type contextKey int

const (
	requestLoggerKey contextKey = iota
	logAttrsKey
)

// attrHolder collects attributes added during request handling so the final
// request log line can include them. Guarded by a mutex because middleware
// and handlers may run on different goroutines for the same request.
type attrHolder struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// ContextWithRequestLogger returns a context carrying the request-scoped logger.
func ContextWithRequestLogger(ctx context.Context, l *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, requestLoggerKey, l)
	return context.WithValue(ctx, logAttrsKey, &attrHolder{})
}

// ContextRequestLogger returns the request-scoped logger from the context, or
// the default logger when the context has none (e.g. in tests).
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(requestLoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// ContextWithLogAttrs records attributes on the request context so the
// request-logging middleware can include them in the final request log line.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	holder, ok := ctx.Value(logAttrsKey).(*attrHolder)
	if !ok {
		return
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	holder.attrs = append(holder.attrs, attrs...)
}

// ContextLogAttrs returns the attributes recorded on the request context.
func ContextLogAttrs(ctx context.Context) []slog.Attr {
	holder, ok := ctx.Value(logAttrsKey).(*attrHolder)
	if !ok {
		return nil
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	out := make([]slog.Attr, len(holder.attrs))
	copy(out, holder.attrs)
	return out
}
