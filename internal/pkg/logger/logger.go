package logger

import (
	"io"
	"log/slog"
	"sort"
)

// SlogLogger adapts log/slog to ports.Logger.
type SlogLogger struct {
	base *slog.Logger
}

// New creates a text logger writing to w. Debug output is only emitted when verbose.
func New(w io.Writer, verbose bool) *SlogLogger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &SlogLogger{base: slog.New(handler)}
}

// Nop discards everything.
func Nop() *SlogLogger {
	return &SlogLogger{base: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a logger tagging every record with component.
func (l *SlogLogger) With(component string) *SlogLogger {
	return &SlogLogger{base: l.base.With("component", component)}
}

func (l *SlogLogger) Debug(msg string, fields map[string]interface{}) {
	l.base.Debug(msg, attrs(fields)...)
}

func (l *SlogLogger) Info(msg string, fields map[string]interface{}) {
	l.base.Info(msg, attrs(fields)...)
}

func (l *SlogLogger) Warn(msg string, fields map[string]interface{}) {
	l.base.Warn(msg, attrs(fields)...)
}

func (l *SlogLogger) Error(msg string, err error, fields map[string]interface{}) {
	args := attrs(fields)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	l.base.Error(msg, args...)
}

// attrs flattens fields in key order so output is stable.
func attrs(fields map[string]interface{}) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.Any(k, fields[k]))
	}
	return out
}
