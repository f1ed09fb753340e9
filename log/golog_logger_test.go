package log

import (
	"bytes"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGologLogger(t *testing.T) {
	logger := NewGologLogger(golog.New())

	assert.NotNil(t, logger)
	assert.Equal(t, LogLevelInfo, logger.GetLevel())
}

func TestGologLogger_LevelControl(t *testing.T) {
	logger := NewGologLogger(golog.New())

	logger.SetLevel(LogLevelDebug)
	assert.Equal(t, LogLevelDebug, logger.GetLevel())

	logger.SetLevel(LogLevelError)
	assert.Equal(t, LogLevelError, logger.GetLevel())

	logger.SetLevel(LogLevelNone)
	assert.Equal(t, LogLevelNone, logger.GetLevel())
}

func TestGologLogger_FormatsArguments(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LogLevelDebug)

	logger.Info("thread %s ran %d steps", "t1", 3)

	out := buf.String()
	assert.Contains(t, out, "thread t1 ran 3 steps")
	assert.Contains(t, out, "[threadgraph]")
}

func TestGologLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LogLevelError)

	logger.Debug("debug-line")
	logger.Info("info-line")
	logger.Warn("warn-line")
	logger.Error("error-line")

	out := buf.String()
	assert.NotContains(t, out, "debug-line")
	assert.NotContains(t, out, "info-line")
	assert.NotContains(t, out, "warn-line")
	assert.Contains(t, out, "error-line")
}

func TestGologLogger_NoneSilencesEverything(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LogLevelNone)

	logger.Error("should not appear")
	assert.Empty(t, buf.String())
}

func TestGologLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf, LogLevelWarn)
	child := parent.Named("agent")

	assert.Equal(t, LogLevelWarn, child.GetLevel())
	child.Warn("tool %s failed", "weather")
	assert.Contains(t, buf.String(), "tool weather failed")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogLevelDebug, false},
		{"INFO", LogLevelInfo, false},
		{"", LogLevelInfo, false},
		{"warning", LogLevelWarn, false},
		{"Error", LogLevelError, false},
		{"off", LogLevelNone, false},
		{"verbose", LogLevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPackageLevelLogger(t *testing.T) {
	prev := GetDefaultLogger()
	defer SetDefaultLogger(prev)

	var buf bytes.Buffer
	SetOutput(&buf, LogLevelDebug)
	Debug("hello %s", "world")
	assert.Contains(t, buf.String(), "hello world")

	SetDefaultLogger(nil)
	assert.IsType(t, NoOpLogger{}, GetDefaultLogger())
	Info("dropped")
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "WARN", LogLevelWarn.String())
	assert.Equal(t, "UNKNOWN(42)", LogLevel(42).String())
}
