// Package logging is the engine's ambient stderr logger: colored, leveled,
// line-oriented, built directly on fatih/color rather than a structured
// logging library.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "LOG"
	}
}

// Logger writes leveled, colored lines to an io.Writer (stderr by
// default). It carries a static set of fields (task_id, component, ...)
// that every line includes, the way a job runner tags every log line with
// its task ID.
type Logger struct {
	w       io.Writer
	level   Level
	colored bool
	fields  map[string]string
}

// New returns a Logger writing to os.Stderr at LevelInfo.
func New() *Logger {
	return &Logger{w: os.Stderr, level: LevelInfo, colored: true}
}

// WithLevel returns a copy of l with its minimum level changed.
func (l *Logger) WithLevel(level Level) *Logger {
	clone := *l
	clone.level = level
	return &clone
}

// WithWriter returns a copy of l writing to w instead.
func (l *Logger) WithWriter(w io.Writer) *Logger {
	clone := *l
	clone.w = w
	return &clone
}

// With returns a copy of l with an additional static field attached.
func (l *Logger) With(key, value string) *Logger {
	clone := *l
	clone.fields = make(map[string]string, len(l.fields)+1)
	for k, v := range l.fields {
		clone.fields[k] = v
	}
	clone.fields[key] = value
	return &clone
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s [%s] %s", time.Now().UTC().Format(time.RFC3339), level, msg)
	for k, v := range l.fields {
		line += fmt.Sprintf(" %s=%s", k, v)
	}

	if !l.colored {
		fmt.Fprintln(l.w, line)
		return
	}

	switch level {
	case LevelError:
		color.New(color.FgRed).Fprintln(l.w, line)
	case LevelWarn:
		color.New(color.FgYellow).Fprintln(l.w, line)
	case LevelDebug:
		color.New(color.FgHiBlack).Fprintln(l.w, line)
	default:
		fmt.Fprintln(l.w, line)
	}
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }
