package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler writes each record to the primary handler and then to every
// mirror that accepts its level. Handler errors are joined.
type teeHandler struct {
	primary slog.Handler
	mirrors []slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.primary.Enabled(ctx, level) {
		return true
	}
	for _, m := range h.mirrors {
		if m.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	if h.primary.Enabled(ctx, record.Level) {
		errs = append(errs, h.primary.Handle(ctx, record.Clone()))
	}
	for _, m := range h.mirrors {
		if m.Enabled(ctx, record.Level) {
			errs = append(errs, m.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h *teeHandler) derive(fn func(slog.Handler) slog.Handler) *teeHandler {
	out := &teeHandler{primary: fn(h.primary), mirrors: make([]slog.Handler, len(h.mirrors))}
	for i, m := range h.mirrors {
		out.mirrors[i] = fn(m)
	}
	return out
}

// TeeLogger mirrors base's output into extra handlers, typically the debug
// file of a diagnostic session. The mirrors may log below base's level.
func TeeLogger(base *slog.Logger, mirrors ...slog.Handler) *slog.Logger {
	var primary slog.Handler = NoopHandler{}
	if base != nil {
		primary = base.Handler()
	}
	kept := mirrors[:0:0]
	for _, m := range mirrors {
		if m != nil {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return slog.New(primary)
	}
	return slog.New(&teeHandler{primary: primary, mirrors: kept})
}
