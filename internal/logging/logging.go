// Package logging builds the slog logger used across godupe.
//
// The default logger discards everything so that log output can never
// corrupt the terminal UI. Logs go to a file only when one is configured.
package logging

import (
	"io"
	"log/slog"
	"os"
)

const (
	defaultLevel     slog.Level = slog.LevelInfo
	defaultAddSource bool       = false
	defaultIsJSON    bool       = false
)

// Options holds the logger settings.
type Options struct {
	Level      slog.Level
	AddSource  bool
	IsJSON     bool
	SetDefault bool
	Writer     io.Writer
}

// Option mutates Options.
type Option func(*Options)

// New returns a logger built from opts. Without WithWriter or WithLogFile it
// discards all records.
func New(opts ...Option) *slog.Logger {
	cfg := &Options{
		Level:     defaultLevel,
		AddSource: defaultAddSource,
		IsJSON:    defaultIsJSON,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var handler slog.Handler
	switch {
	case cfg.Writer == nil:
		handler = slog.DiscardHandler
	case cfg.IsJSON:
		handler = slog.NewJSONHandler(cfg.Writer, &slog.HandlerOptions{AddSource: cfg.AddSource, Level: cfg.Level})
	default:
		handler = slog.NewTextHandler(cfg.Writer, &slog.HandlerOptions{AddSource: cfg.AddSource, Level: cfg.Level})
	}

	logger := slog.New(handler)
	if cfg.SetDefault {
		slog.SetDefault(logger)
	}
	return logger
}

// ParseLevel accepts debug, info, warn and error (any case). An empty string
// yields info.
func ParseLevel(level string) (slog.Level, error) {
	if level == "" {
		return defaultLevel, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return defaultLevel, err
	}
	return l, nil
}

// WithLevel sets the minimum level; unknown names fall back to info.
func WithLevel(level string) Option {
	return func(o *Options) {
		l, err := ParseLevel(level)
		if err != nil {
			l = defaultLevel
		}
		o.Level = l
	}
}

func WithAddSource(addSource bool) Option {
	return func(o *Options) { o.AddSource = addSource }
}

func WithJSON(isJSON bool) Option {
	return func(o *Options) { o.IsJSON = isJSON }
}

func WithSetDefault(setDefault bool) Option {
	return func(o *Options) { o.SetDefault = setDefault }
}

func WithWriter(w io.Writer) Option {
	return func(o *Options) { o.Writer = w }
}

// OpenFile opens path for appending log records. The caller closes it.
func OpenFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
