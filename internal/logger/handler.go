package logger

import (
	"context"
	"log/slog"
	"simdex/internal/middleware"
)

// ContextHandler stamps every record with the request's correlation id, so
// the log lines of one check (HTTP or queued) can be tied together.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(middleware.CorrelationKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}
