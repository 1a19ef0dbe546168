package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a configured log level name.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the console encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config holds logger configuration.
type Config struct {
	Level  Level
	Format Format

	// File enables a rotating JSON file sink next to the console output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Output overrides the console writer (defaults to os.Stdout).
	Output io.Writer
}

// New builds the process logger: tint or JSON on the console, plus a
// lumberjack-rotated JSON file when Config.File is set.
func New(cfg Config) *slog.Logger {
	level := parseLevel(cfg.Level)
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var console slog.Handler
	if cfg.Format == FormatJSON {
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug})
	} else {
		console = tint.NewHandler(out, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			AddSource:  level == slog.LevelDebug,
			NoColor:    out != os.Stdout && out != os.Stderr,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if err, ok := a.Value.Any().(error); ok && a.Key == "error" {
					colored := tint.Err(err)
					colored.Key = a.Key
					return colored
				}
				return a
			},
		})
	}

	if strings.TrimSpace(cfg.File) == "" {
		return slog.New(console)
	}
	sink := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSizeMB, 100),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAgeDays, 7),
		Compress:   true,
	}
	file := slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level})
	return slog.New(&fanoutHandler{handlers: []slog.Handler{console, file}})
}

// parseLevel accepts the slog level names case-insensitively and falls back
// to info.
func parseLevel(level Level) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(string(level)))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// SetDefault sets the default logger for the application
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// Component returns a child logger tagged with the component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

// fanoutHandler writes each record to every wrapped handler.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, next := range h.handlers {
		if next.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, next := range h.handlers {
		if !next.Enabled(ctx, record.Level) {
			continue
		}
		if err := next.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}
