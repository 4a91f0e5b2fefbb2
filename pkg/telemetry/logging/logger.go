package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mercator-hq/callisto/pkg/config"
)

// LogFormat represents the output format for logs.
type LogFormat string

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON LogFormat = "json"
	// FormatText outputs logs as logfmt-style key=value text.
	FormatText LogFormat = "text"
)

// Config contains configuration for a logger.
type Config struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string

	// Format is the output format ("json", "text").
	Format string

	// AddSource includes file and line number in logs.
	AddSource bool

	// RedactPII masks emails, student ids and other personal data.
	RedactPII bool

	// Writer is the output writer (defaults to os.Stderr).
	Writer io.Writer
}

// FromConfig converts the telemetry logging section into a Config.
func FromConfig(cfg config.LoggingConfig, w io.Writer) Config {
	return Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		RedactPII: cfg.RedactPII,
		Writer:    w,
	}
}

// New creates a *slog.Logger whose handler adds request-scoped fields from
// the context and, when enabled, redacts personal data from attribute
// values.
func New(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var base slog.Handler
	switch format {
	case FormatText:
		base = slog.NewTextHandler(writer, opts)
	default:
		base = slog.NewJSONHandler(writer, opts)
	}

	var redactor *Redactor
	if cfg.RedactPII {
		redactor = NewRedactor()
	}

	return slog.New(&Handler{next: base, redactor: redactor}), nil
}

// Setup builds a logger from cfg and installs it as slog.Default.
func Setup(cfg Config) (*slog.Logger, error) {
	logger, err := New(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// Handler is a slog.Handler that enriches records with context fields and
// redacts attribute values before passing them on.
type Handler struct {
	next     slog.Handler
	redactor *Redactor
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(contextAttrs(ctx)...)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &Handler{next: h.next.WithAttrs(redacted), redactor: h.redactor}
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), redactor: h.redactor}
}

func (h *Handler) redact(a slog.Attr) slog.Attr {
	if h.redactor == nil {
		return a
	}
	return h.redactor.RedactAttr(a)
}

// ParseLevel parses a log level name. An empty string yields info.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

func parseFormat(formatStr string) (LogFormat, error) {
	switch strings.ToLower(formatStr) {
	case "json", "":
		return FormatJSON, nil
	case "text", "console":
		return FormatText, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format: %s", formatStr)
	}
}
