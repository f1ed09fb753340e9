package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel orders message severities; a logger drops messages below its level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelNone // silences the logger
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "NONE"}

func (l LogLevel) String() string {
	if l < LogLevelDebug || int(l) >= len(levelNames) {
		return fmt.Sprintf("UNKNOWN(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel maps a case-insensitive level name to a LogLevel.
// "warning" and "disable"/"off" are accepted as aliases, and an empty name
// means info.
func ParseLevel(name string) (LogLevel, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch n {
	case "":
		return LogLevelInfo, nil
	case "WARNING":
		return LogLevelWarn, nil
	case "DISABLE", "OFF":
		return LogLevelNone, nil
	}
	for i, known := range levelNames {
		if n == known {
			return LogLevel(i), nil
		}
	}
	return LogLevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Logger is the leveled, printf-style logger used across threadgraph.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// NoOpLogger discards everything.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

type holder struct{ Logger }

var current atomic.Pointer[holder]

func init() {
	current.Store(&holder{New(os.Stderr, LogLevelInfo)})
}

// SetDefaultLogger replaces the package-level logger. nil installs a NoOpLogger.
func SetDefaultLogger(logger Logger) {
	if logger == nil {
		logger = NoOpLogger{}
	}
	current.Store(&holder{logger})
}

// GetDefaultLogger returns the package-level logger, a stderr logger at info
// level unless replaced.
func GetDefaultLogger() Logger {
	return current.Load().Logger
}

// SetLogLevel installs a stderr logger at level.
func SetLogLevel(level LogLevel) {
	SetOutput(os.Stderr, level)
}

// SetOutput installs a logger writing to out at level.
func SetOutput(out io.Writer, level LogLevel) {
	SetDefaultLogger(New(out, level))
}

func Debug(format string, v ...any) { GetDefaultLogger().Debug(format, v...) }
func Info(format string, v ...any)  { GetDefaultLogger().Info(format, v...) }
func Warn(format string, v ...any)  { GetDefaultLogger().Warn(format, v...) }
func Error(format string, v ...any) { GetDefaultLogger().Error(format, v...) }
