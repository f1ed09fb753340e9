package log

import (
	"io"
	"sync/atomic"

	"github.com/kataras/golog"
)

const defaultPrefix = "[threadgraph] "

// GologLogger implements Logger using kataras/golog. Level filtering is done
// here so the same golog instance can be shared by loggers at different levels.
type GologLogger struct {
	logger *golog.Logger
	level  atomic.Int32
}

var _ Logger = (*GologLogger)(nil)

// NewGologLogger wraps an existing golog.Logger at info level.
func NewGologLogger(logger *golog.Logger) *GologLogger {
	l := &GologLogger{logger: logger}
	l.level.Store(int32(LogLevelInfo))
	return l
}

// New creates a golog-backed logger writing to out at the given level.
func New(out io.Writer, level LogLevel) *GologLogger {
	g := golog.New()
	g.SetOutput(out)
	g.SetPrefix(defaultPrefix)
	g.SetLevel("debug")
	g.SetTimeFormat("2006/01/02 15:04:05")

	l := NewGologLogger(g)
	l.SetLevel(level)
	return l
}

// Named returns a child logger whose lines carry name as an extra prefix.
// The child starts at the parent's current level.
func (l *GologLogger) Named(name string) *GologLogger {
	child := NewGologLogger(l.logger.Child(name + ": "))
	child.SetLevel(l.GetLevel())
	return child
}

// SetLevel sets the minimum level that is written.
func (l *GologLogger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// GetLevel returns the current minimum level.
func (l *GologLogger) GetLevel() LogLevel {
	return LogLevel(l.level.Load())
}

func (l *GologLogger) enabled(level LogLevel) bool {
	return l.GetLevel() <= level
}

// Debug logs debug messages
func (l *GologLogger) Debug(format string, v ...any) {
	if l.enabled(LogLevelDebug) {
		l.logger.Debugf(format, v...)
	}
}

// Info logs informational messages
func (l *GologLogger) Info(format string, v ...any) {
	if l.enabled(LogLevelInfo) {
		l.logger.Infof(format, v...)
	}
}

// Warn logs warning messages
func (l *GologLogger) Warn(format string, v ...any) {
	if l.enabled(LogLevelWarn) {
		l.logger.Warnf(format, v...)
	}
}

// Error logs error messages
func (l *GologLogger) Error(format string, v ...any) {
	if l.enabled(LogLevelError) {
		l.logger.Errorf(format, v...)
	}
}
