// Package correlation carries the per-request correlation identifier through
// context.Context and into structured logs.
package correlation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

const (
	// Header is the request and response header holding the correlation identifier.
	Header = "X-Correlation-ID"

	// LogKey is the attribute name used in log records.
	LogKey = "correlation_id"
)

type ctxKey struct{}

// NewID generates a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identifier stored in ctx, or "" if none.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// LogHandler decorates a slog.Handler so that records logged with a context carrying
// a correlation identifier get a correlation_id attribute.
type LogHandler struct {
	next slog.Handler
}

// NewLogHandler wraps next.
func NewLogHandler(next slog.Handler) *LogHandler {
	return &LogHandler{next: next}
}

// Enabled implements slog.Handler.
func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *LogHandler) Handle(ctx context.Context, record slog.Record) error {
	if id := FromContext(ctx); id != "" {
		record = record.Clone()
		record.AddAttrs(slog.String(LogKey, id))
	}
	return h.next.Handle(ctx, record)
}

// WithAttrs implements slog.Handler.
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{next: h.next.WithGroup(name)}
}
