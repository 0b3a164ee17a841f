package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// DaemonSource is the source name used for daemon-level events.
const DaemonSource = "spawnd"

// Emitter receives lifecycle and output lines from the supervisor core.
// The core only produces the text and the originating name; formatting and
// transport belong to the implementation.
type Emitter interface {
	Emit(line, source string)
}

// EmitterFunc adapts a function to an Emitter.
type EmitterFunc func(line, source string)

func (f EmitterFunc) Emit(line, source string) { f(line, source) }

// Format renders a line in the supervisor[source]: text convention.
func Format(source, line string) string {
	return "supervisor[" + source + "]: " + line
}

// SlogEmitter writes every line as an info record.
type SlogEmitter struct {
	l *slog.Logger
}

func NewSlogEmitter(l *slog.Logger) *SlogEmitter {
	if l == nil {
		l = slog.Default()
	}
	return &SlogEmitter{l: l}
}

func (e *SlogEmitter) Emit(line, source string) {
	e.l.Info(Format(source, line))
}

// MultiEmitter fans a line out to every contained emitter in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(line, source string) {
	for _, e := range m {
		if e != nil {
			e.Emit(line, source)
		}
	}
}

// Close closes every contained emitter that implements io.Closer.
func (m MultiEmitter) Close() error {
	var first error
	for _, e := range m {
		if c, ok := e.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// ParseLevel maps a config string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// New builds the daemon logger. format is one of color, text or json.
func New(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "color":
		h = NewColorTextHandler(w, opts, true)
	case "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return slog.New(h), nil
}
