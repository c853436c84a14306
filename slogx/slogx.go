package slogx

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a [slog.Logger] writing to w in the given format at the given level.
// Format may be [FormatText] or [FormatJSON], and an empty format is treated as [FormatText].
// Attributes added with With are de-duplicated, so layered components can safely re-add the same key.
func New(w io.Writer, level slog.Leveler, format string) (*slog.Logger, error) {
	handler, err := NewHandler(w, level, format)
	if err != nil {
		return nil, err
	}
	return slog.New(NewDedupeHandler(handler)), nil
}

// NewHandler creates the [slog.Handler] used by [New].
func NewHandler(w io.Writer, level slog.Leveler, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return slog.NewTextHandler(w, opts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format '%s'", format)
	}
}

// ParseLevel translates a level name like "debug" or "WARN" into a [slog.Level].
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if len(strings.TrimSpace(level)) == 0 {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': %w", level, err)
	}
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

// OrDiscard returns log, or a [Discard] logger if log is nil.
func OrDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return Discard()
	}
	return log
}
