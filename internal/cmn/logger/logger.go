// Package logger builds the application's slog logger and carries it through contexts.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

type Config struct {
	debug  bool
	format string
	writer io.Writer
	quiet  bool
	stderr io.Writer
}

type Option func(*Config)

// WithDebug sets the level of the logger to debug.
func WithDebug() Option {
	return func(o *Config) {
		o.debug = true
	}
}

// WithFormat sets the format of the logger (text or json).
func WithFormat(format string) Option {
	return func(o *Config) {
		o.format = format
	}
}

// WithWriter adds a writer, typically a log file, that receives every record.
func WithWriter(w io.Writer) Option {
	return func(o *Config) {
		o.writer = w
	}
}

// WithQuiet suppresses output to stderr.
func WithQuiet() Option {
	return func(o *Config) {
		o.quiet = true
	}
}

// withConsole replaces stderr as the console destination.
func withConsole(w io.Writer) Option {
	return func(o *Config) {
		o.stderr = w
	}
}

// New returns a logger that fans out to stderr and the optional writer.
func New(opts ...Option) *slog.Logger {
	cfg := &Config{format: "text", stderr: os.Stderr}
	for _, opt := range opts {
		opt(cfg)
	}

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.debug,
	}

	var handlers []slog.Handler
	if !cfg.quiet {
		handlers = append(handlers, newHandler(cfg.stderr, cfg.format, handlerOpts))
	}
	if cfg.writer != nil {
		handlers = append(handlers, newGuardedHandler(newHandler(cfg.writer, cfg.format, handlerOpts)))
	}

	return slog.New(slogmulti.Fanout(handlers...))
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var _ slog.Handler = (*guardedHandler)(nil)

// guardedHandler serializes writes so records from derived loggers sharing
// one file do not interleave.
type guardedHandler struct {
	handler slog.Handler
	mu      *sync.Mutex
}

func newGuardedHandler(handler slog.Handler) *guardedHandler {
	return &guardedHandler{handler: handler, mu: &sync.Mutex{}}
}

// Enabled implements slog.Handler.
func (g *guardedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return g.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (g *guardedHandler) Handle(ctx context.Context, record slog.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handler.Handle(ctx, record)
}

// WithAttrs implements slog.Handler.
func (g *guardedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &guardedHandler{handler: g.handler.WithAttrs(attrs), mu: g.mu}
}

// WithGroup implements slog.Handler.
func (g *guardedHandler) WithGroup(name string) slog.Handler {
	return &guardedHandler{handler: g.handler.WithGroup(name), mu: g.mu}
}
