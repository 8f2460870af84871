// Package logger configures the process-wide slog logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"golang.org/x/term"
)

const modulePrefix = "github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001"

// ParseLevel converts a level name to slog.Level. An empty name means
// info; unknown names are an error.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Init installs the process-wide logger. Records emitted outside this
// module are suppressed unless level is debug, which keeps SDK chatter
// (AWS, gRPC, redis) out of normal service logs. Colors turn on
// automatically when output is a terminal.
//
// format: "simple" (level + message + attrs), "verbose" (adds
// timestamps), or "json" (standard slog JSON handler, for log
// aggregation).
func Init(level slog.Level, output *os.File, format string) {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(output, opts)
	case "verbose":
		h = newConsoleHandler(output, opts, true)
	default:
		h = newConsoleHandler(output, opts, false)
	}

	slog.SetDefault(slog.New(&moduleFilter{next: h, level: level}))
}

// OpenLogFile opens path for appending, creating it if needed, and
// returns a close function for shutdown.
func OpenLogFile(path string) (*os.File, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// moduleFilter drops records logged by other modules unless the
// configured level is debug.
type moduleFilter struct {
	next  slog.Handler
	level slog.Level
}

func (f *moduleFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= f.level && f.next.Enabled(ctx, level)
}

func (f *moduleFilter) Handle(ctx context.Context, r slog.Record) error {
	if f.level > slog.LevelDebug && !ownRecord(r.PC) {
		return nil
	}
	return f.next.Handle(ctx, r)
}

func (f *moduleFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &moduleFilter{next: f.next.WithAttrs(attrs), level: f.level}
}

func (f *moduleFilter) WithGroup(name string) slog.Handler {
	return &moduleFilter{next: f.next.WithGroup(name), level: f.level}
}

// ownRecord reports whether the record was logged from inside this
// module.
func ownRecord(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	if strings.HasPrefix(fn.Name(), modulePrefix) {
		return true
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(file, "climate-multilingual-chatbot")
}

// consoleHandler renders "LEVEL message k=v ..." lines. The wrapped
// handler only supplies the Enabled decision.
type consoleHandler struct {
	next   slog.Handler
	out    io.Writer
	color  bool
	stamps bool
}

func newConsoleHandler(output *os.File, opts *slog.HandlerOptions, stamps bool) *consoleHandler {
	return &consoleHandler{
		next:   slog.NewTextHandler(output, opts),
		out:    output,
		color:  term.IsTerminal(int(output.Fd())),
		stamps: stamps,
	}
}

func (h *consoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 128)
	if h.stamps && !r.Time.IsZero() {
		buf = r.Time.AppendFormat(buf, "2006/01/02 15:04:05 ")
	}
	if h.color {
		buf = append(buf, colorFor(r.Level)...)
		buf = append(buf, r.Level.String()...)
		buf = append(buf, "\033[0m"...)
	} else {
		buf = append(buf, r.Level.String()...)
	}
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)
	r.Attrs(func(a slog.Attr) bool {
		buf = append(buf, ' ')
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		buf = append(buf, a.Value.String()...)
		return true
	})
	buf = append(buf, '\n')

	_, err := h.out.Write(buf)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	return &c
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	return &c
}

func colorFor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m" // red
	case level >= slog.LevelWarn:
		return "\033[33m" // yellow
	case level >= slog.LevelInfo:
		return "\033[36m" // cyan
	}
	return "\033[90m" // gray
}
