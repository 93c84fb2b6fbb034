// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/skillsloop/pkg/core"
)

// Log attribute keys added from the context.
const (
	LogKeySessionID = "session_id"
	LogKeyTraceID   = "trace_id"
	LogKeySpanID    = "span_id"
)

// ConfigureSlog installs the default logger. Records logged with a context
// carry the loop session id and the active trace and span ids.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	logger := slog.New(NewLogHandler(output, level, format))
	slog.SetDefault(logger)
	return logger
}

// NewLogHandler returns a text or JSON handler wrapped with context
// enrichment. Unknown formats fall back to text.
func NewLogHandler(output io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return &contextHandler{next: slog.NewJSONHandler(output, opts)}
	}
	return &contextHandler{next: slog.NewTextHandler(output, opts)}
}

type contextHandler struct {
	next slog.Handler
	// hasSession is set once a logger was derived with a session id.
	hasSession bool
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx == nil {
		return h.next.Handle(ctx, record)
	}
	if !h.hasSession {
		if id, ok := core.SessionID(ctx); ok && !recordHasAttr(record, LogKeySessionID) {
			record.AddAttrs(slog.String(LogKeySessionID, id))
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		if !recordHasAttr(record, LogKeyTraceID) {
			record.AddAttrs(slog.String(LogKeyTraceID, sc.TraceID().String()))
		}
		if !recordHasAttr(record, LogKeySpanID) {
			record.AddAttrs(slog.String(LogKeySpanID, sc.SpanID().String()))
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	has := h.hasSession
	for _, a := range attrs {
		if a.Key == LogKeySessionID {
			has = true
		}
	}
	return &contextHandler{next: h.next.WithAttrs(attrs), hasSession: has}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name), hasSession: h.hasSession}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func recordHasAttr(record slog.Record, key string) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			found = true
			return false
		}
		return true
	})
	return found
}
