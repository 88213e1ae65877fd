package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger wraps zerolog.Logger to implement the Logger interface.
// It provides structured logging functionality with configurable output formatting.
type ZeroLogger struct {
	zlog   *zerolog.Logger
	filter *SensitiveDataFilter
}

// Ensure ZeroLogger implements the interface
var _ Logger = (*ZeroLogger)(nil)

var callerMarshalOnce sync.Once

func setCallerMarshal() {
	callerMarshalOnce.Do(func() {
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			base := filepath.Base(file)
			parent := filepath.Base(filepath.Dir(file))
			if parent != "." && parent != "" {
				return parent + "/" + base + ":" + strconv.Itoa(line)
			}
			return base + ":" + strconv.Itoa(line)
		}
	})
}

// New creates a ZeroLogger writing to stdout with the specified log level.
// If pretty is true, output will be formatted for human readability.
func New(level string, pretty bool) *ZeroLogger {
	return NewWithWriter(os.Stdout, level, pretty)
}

// NewWithWriter is New with an explicit output. The CLI logs to stderr so response bodies
// on stdout stay clean.
func NewWithWriter(w io.Writer, level string, pretty bool) *ZeroLogger {
	return NewWithFilter(w, level, pretty, DefaultFilterConfig())
}

// NewWithFilter creates a ZeroLogger with a custom filter configuration.
// This allows applications to customize which fields are considered sensitive.
func NewWithFilter(w io.Writer, level string, pretty bool, filterConfig *FilterConfig) *ZeroLogger {
	setCallerMarshal()

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(w).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	l = l.Level(ParseLevel(level))

	return &ZeroLogger{zlog: &l, filter: NewSensitiveDataFilter(filterConfig)}
}

// Nop returns a logger that discards everything.
func Nop() *ZeroLogger {
	l := zerolog.Nop()
	return &ZeroLogger{zlog: &l}
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	zLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return zLevel
}

// WithContext returns the logger stored in a context.Context by zerolog, keeping this
// logger's filter. Anything else returns l unchanged.
func (l *ZeroLogger) WithContext(ctx any) Logger {
	if c, ok := ctx.(context.Context); ok {
		zl := zerolog.Ctx(c)
		if zl == nil || zl.GetLevel() == zerolog.Disabled {
			return l
		}
		return &ZeroLogger{zlog: zl, filter: l.filter}
	}
	return l
}

// WithFields returns a logger with additional fields attached to all log entries.
func (l *ZeroLogger) WithFields(fields map[string]any) Logger {
	if l.filter != nil {
		fields = l.filter.FilterFields(fields)
	}
	log := l.zlog.With().Fields(fields).Logger()
	return &ZeroLogger{zlog: &log, filter: l.filter}
}

// Context attaches the underlying zerolog logger to ctx for WithContext lookups.
func (l *ZeroLogger) Context(ctx context.Context) context.Context {
	return l.zlog.WithContext(ctx)
}
