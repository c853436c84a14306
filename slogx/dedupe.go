package slogx

import (
	"context"
	"log/slog"
	"slices"
)

var _ slog.Handler = (*DedupeHandler)(nil)

// DedupeHandler keeps only the latest value for each attribute key.
// Groups are flattened into dotted key prefixes.
type DedupeHandler struct {
	group string
	attrs []slog.Attr
	impl  slog.Handler
}

func NewDedupeHandler(impl slog.Handler) slog.Handler {
	if impl == nil {
		panic("nil implementing handler")
	}
	if existing, ok := impl.(*DedupeHandler); ok {
		return existing
	}
	return &DedupeHandler{
		impl: impl,
	}
}

func (s *DedupeHandler) prefix() string {
	if len(s.group) == 0 {
		return ""
	}
	return s.group + "."
}

func (s *DedupeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.impl.Enabled(ctx, level)
}

func (s *DedupeHandler) Handle(ctx context.Context, record slog.Record) error {
	h := s
	if record.NumAttrs() > 0 {
		recordAttrs := make([]slog.Attr, 0, record.NumAttrs())
		record.Attrs(func(attr slog.Attr) bool {
			recordAttrs = append(recordAttrs, attr)
			return true
		})
		record = slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
		h = s.with(recordAttrs)
	}
	return h.impl.WithAttrs(h.attrs).Handle(ctx, record)
}

func (s *DedupeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return s.with(attrs)
}

func (s *DedupeHandler) with(attrs []slog.Attr) *DedupeHandler {
	if len(attrs) == 0 {
		return s
	}
	cp := &DedupeHandler{
		group: s.group,
		attrs: slices.Clone(s.attrs),
		impl:  s.impl,
	}
	prefix := cp.prefix()
	for _, attr := range attrs {
		attr.Key = prefix + attr.Key
		idx := slices.IndexFunc(cp.attrs, func(existing slog.Attr) bool {
			return existing.Key == attr.Key
		})
		if idx >= 0 {
			cp.attrs[idx] = attr
			continue
		}
		cp.attrs = append(cp.attrs, attr)
	}
	return cp
}

func (s *DedupeHandler) WithGroup(name string) slog.Handler {
	if len(name) == 0 {
		return s
	}
	return &DedupeHandler{
		group: s.prefix() + name,
		attrs: s.attrs,
		impl:  s.impl,
	}
}
