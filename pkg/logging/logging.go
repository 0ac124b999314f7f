// Package logging wires log/slog for the command line tools: a handler that
// carries request scoped attributes through context.Context, and a rotating
// file writer for long running batch jobs.
package logging

import (
	"context"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey struct{}

// ContextHandler decorates a slog.Handler with the attributes stored by AppendCtx.
type ContextHandler struct {
	slog.Handler
}

// Handle adds the context attributes to the record before delegating
func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{h.Handler.WithGroup(name)}
}

// AppendCtx returns a copy of parent carrying attrs in addition to any
// attributes already attached upstream.
func AppendCtx(parent context.Context, attrs ...slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	existing, _ := parent.Value(ctxKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(parent, ctxKey{}, merged)
}

// Logger builds a context aware logger writing text (or json) records to w.
func Logger(w io.Writer, json bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(ContextHandler{h})
}

// RotatingWriter returns a size rotated log file. maxMB and maxBackups fall
// back to lumberjack defaults when zero.
func RotatingWriter(path string, maxMB, maxBackups int) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
}
