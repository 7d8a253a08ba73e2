// Package observability provides the leveled logger the coordinator uses
// to report PQ training events.
package observability

import (
	"fmt"
	"io"
	"os"
	"time"
)

// LogLevel is the severity of a log entry.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is a small structured logger over an io.Writer. It carries no
// external logging dependency — the corpus's own teacher repo logs the
// same way.
type Logger struct {
	level      LogLevel
	output     io.Writer
	fields     map[string]any
	timeFormat string
}

// NewLogger creates a logger at the given level writing to output (os.Stdout
// if nil).
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{
		level:      level,
		output:     output,
		fields:     make(map[string]any),
		timeFormat: time.RFC3339,
	}
}

// NewDefaultLogger returns an INFO-level logger writing to stdout.
func NewDefaultLogger() *Logger {
	return NewLogger(INFO, os.Stdout)
}

// WithFields returns a derived logger carrying the given fields in addition
// to this logger's own.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, output: l.output, fields: merged, timeFormat: l.timeFormat}
}

// WithField is WithFields for a single key/value pair.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.WithFields(map[string]any{key: value})
}

// SetLevel changes the minimum level this logger emits.
func (l *Logger) SetLevel(level LogLevel) { l.level = level }

func (l *Logger) Debug(msg string, fields ...map[string]any) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...map[string]any)  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...map[string]any)  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...map[string]any) { l.log(ERROR, msg, fields...) }

func (l *Logger) log(level LogLevel, msg string, extra ...map[string]any) {
	if l == nil || level < l.level {
		return
	}

	all := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		all[k] = v
	}
	for _, fields := range extra {
		for k, v := range fields {
			all[k] = v
		}
	}

	entry := fmt.Sprintf("[%s] %s: %s", time.Now().Format(l.timeFormat), level, msg)
	if len(all) > 0 {
		entry += " |"
		for k, v := range all {
			entry += fmt.Sprintf(" %s=%v", k, v)
		}
	}
	entry += "\n"
	l.output.Write([]byte(entry))
}

// LogOperation logs the start and outcome of fn under the given name,
// including its duration.
func (l *Logger) LogOperation(operation string, fn func() error) error {
	start := time.Now()
	l.Debug("starting " + operation)

	err := fn()

	dur := time.Since(start)
	if err != nil {
		l.Error("operation failed", map[string]any{"operation": operation, "duration": dur, "error": err.Error()})
	} else {
		l.Info("operation completed", map[string]any{"operation": operation, "duration": dur})
	}
	return err
}
