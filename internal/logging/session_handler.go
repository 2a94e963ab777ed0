package logging

import (
	"context"
	"log/slog"
)

// FieldRunID identifies one daemon or CLI process run across its log lines.
const FieldRunID = "run_id"

// sessionIDHandler stamps a run identifier onto every record it forwards.
type sessionIDHandler struct {
	base  slog.Handler
	runID string
}

func newSessionIDHandler(base slog.Handler, runID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &sessionIDHandler{base: base, runID: runID}
}

func (h *sessionIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *sessionIDHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.String(FieldRunID, h.runID))
	return h.base.Handle(ctx, record)
}

func (h *sessionIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionIDHandler{base: h.base.WithAttrs(attrs), runID: h.runID}
}

func (h *sessionIDHandler) WithGroup(name string) slog.Handler {
	return &sessionIDHandler{base: h.base.WithGroup(name), runID: h.runID}
}
