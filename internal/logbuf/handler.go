package logbuf

import (
	"context"
	"log/slog"
)

// Handler records every log record at or above its capture level into a
// Buffer and forwards records to the wrapped handler according to that
// handler's own level.
type Handler struct {
	next    slog.Handler
	buf     *Buffer
	capture slog.Leveler
	prefix  string
	attrs   map[string]any
}

// NewHandler wraps next. Records at or above capture are kept in buf even
// when next would drop them.
func NewHandler(next slog.Handler, buf *Buffer, capture slog.Leveler) *Handler {
	if capture == nil {
		capture = slog.LevelDebug
	}
	return &Handler{next: next, buf: buf, capture: capture}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.capture.Level() || h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.capture.Level() {
		attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
		for k, v := range h.attrs {
			attrs[k] = v
		}
		r.Attrs(func(a slog.Attr) bool {
			flatten(attrs, h.prefix, a)
			return true
		})
		if len(attrs) == 0 {
			attrs = nil
		}
		h.buf.Add(Entry{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: attrs})
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(as []slog.Attr) slog.Handler {
	c := h.clone()
	c.next = h.next.WithAttrs(as)
	for _, a := range as {
		flatten(c.attrs, c.prefix, a)
	}
	return c
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.next = h.next.WithGroup(name)
	c.prefix = h.prefix + name + "."
	return c
}

func (h *Handler) clone() *Handler {
	attrs := make(map[string]any, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	return &Handler{next: h.next, buf: h.buf, capture: h.capture, prefix: h.prefix, attrs: attrs}
}

// flatten stores a under dotted keys so nested groups stay readable in
// JSON output.
func flatten(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(dst, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	if err, ok := v.Any().(error); ok {
		dst[prefix+a.Key] = err.Error()
		return
	}
	dst[prefix+a.Key] = v.Any()
}
